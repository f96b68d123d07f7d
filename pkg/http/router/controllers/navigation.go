package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	helper "github.com/rizkia-p/wayfindr/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

const maxFrameBytes = 8 << 20

type navigationAPI struct {
	navigationService NavigationService
	log               *zap.Logger
}

func New(navigationService NavigationService, log *zap.Logger) *navigationAPI {
	return &navigationAPI{
		navigationService: navigationService,
		log:               log,
	}
}

func (api *navigationAPI) Routes(group *helper.RouteGroup) {
	group.GET("/route", api.planRoute)
	group.GET("/destinations", api.destinations)
	group.GET("/nearbyNodes", api.nearbyNodes)
	group.POST("/localize", api.localize)
	group.POST("/localizeScan", api.localizeScan)
}

func (api *navigationAPI) planRoute(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request planRouteRequest

	query := r.URL.Query()
	request.StartId = query.Get("start_id")
	request.DestinationId = query.Get("destination_id")

	validate := validator.New()
	if err := validate.Struct(request); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return
	}

	route, pathPolyline, err := api.navigationService.PlanRoute(request.StartId, request.DestinationId)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewPlanRouteResponse(route, pathPolyline)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *navigationAPI) destinations(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	excludingId := r.URL.Query().Get("excluding")

	nodes := api.navigationService.Destinations(excludingId)

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewNodeResponses(nodes)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *navigationAPI) nearbyNodes(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		x, y, radius float64
		err          error
	)

	query := r.URL.Query()

	x, err = strconv.ParseFloat(query.Get("x"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("x is required and must be a valid float"))
		return
	}
	y, err = strconv.ParseFloat(query.Get("y"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("y is required and must be a valid float"))
		return
	}
	radius, err = strconv.ParseFloat(query.Get("radius"), 64)
	if err != nil || radius <= 0 {
		api.BadRequestResponse(w, r, errors.New("radius is required and must be a positive float"))
		return
	}

	nodes := api.navigationService.NearbyNodes(x, y, radius)

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewNodeResponses(nodes)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *navigationAPI) localize(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		api.BadRequestResponse(w, r, errors.New("request must be multipart form data with an image field"))
		return
	}

	image, err := api.readFormImage(r, "image")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	enhanced := r.URL.Query().Get("enhanced") == "true"

	match, matched, err := api.navigationService.Localize(r.Context(), image, enhanced)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewLocationMatchResponse(match, matched)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

// localizeScan rotate-in-place localization, a multipart form with one or
// more "images" fields ordered by capture time.
func (api *navigationAPI) localizeScan(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		api.BadRequestResponse(w, r, errors.New("request must be multipart form data with images fields"))
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		api.BadRequestResponse(w, r, errors.New("at least one images field is required"))
		return
	}

	frames := make([][]byte, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			api.BadRequestResponse(w, r, err)
			return
		}
		buf, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			api.ServerErrorResponse(w, r, err)
			return
		}
		frames = append(frames, buf)
	}

	match, matched, err := api.navigationService.LocalizeMulti(r.Context(), frames)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewLocationMatchResponse(match, matched)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *navigationAPI) readFormImage(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s field is required", field)
	}
	defer file.Close()

	return io.ReadAll(file)
}
