package main

import (
	"flag"
	"os"

	"github.com/rizkia-p/wayfindr/pkg/mapstore"
)

var (
	inPath  = flag.String("in", "./data/map.json", "building map json file")
	outPath = flag.String("out", "./data/map.bundle.bz2", "compressed map bundle output")
)

func main() {
	flag.Parse()

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		panic(err)
	}

	err = mapstore.WriteBundle(*outPath, raw)
	if err != nil {
		panic(err)
	}
	_, _, err = mapstore.LoadBundle(*outPath)
	if err != nil {
		panic(err)
	}
}
