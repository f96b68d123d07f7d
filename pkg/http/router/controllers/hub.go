package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rizkia-p/wayfindr/pkg/concurrent"
	"github.com/rizkia-p/wayfindr/pkg/engine/navigation"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

type sessionRequest struct {
	Type          string   `json:"type" validate:"required"`
	Frames        []string `json:"frames,omitempty"`
	Frame         string   `json:"frame,omitempty"`
	DestinationId string   `json:"destination_id,omitempty"`
	Heading       *float64 `json:"heading,omitempty"`
	Steps         *int     `json:"steps,omitempty"`
}

// Session one websocket navigation session. the connection owns a private
// engine and estimator; sensor messages are forwarded into the engine's
// channels and guidance events are pumped back over the same connection.
type Session struct {
	io   sync.Mutex
	conn io.ReadWriteCloser

	id  uint
	hub *Hub

	engine *navigation.Engine
	frames chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Session) readRequest() (*sessionRequest, error) {
	s.io.Lock()
	defer s.io.Unlock()

	h, r, err := wsutil.NextReader(s.conn, ws.StateServerSide)
	if err != nil {
		return nil, err
	}
	if h.OpCode.IsControl() {
		return nil, wsutil.ControlFrameHandler(s.conn, ws.StateServerSide)(h, r)
	}

	req := &sessionRequest{}
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Session) write(x interface{}) error {
	w := wsutil.NewWriter(s.conn, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	s.io.Lock()
	defer s.io.Unlock()

	if err := encoder.Encode(x); err != nil {
		return err
	}

	return w.Flush()
}

func (s *Session) writeError(message string) error {
	return s.write(envelope{"error": map[string]string{
		"code":    http.StatusText(http.StatusBadRequest),
		"message": message,
	}})
}

// capture hands the engine the most recent frame streamed by the client. the
// engine calls this off its loop, so blocking until a frame shows up is fine.
func (s *Session) capture(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// depositFrame latest-wins mailbox: a stale frame still sitting in the
// channel is replaced, never queued behind.
func (s *Session) depositFrame(frame []byte) {
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- frame:
	default:
	}
}

// pumpGuidance forwards engine guidance events to the client until the
// session ends.
func (s *Session) pumpGuidance() {
	for {
		select {
		case in := <-s.engine.Guidance():
			if err := s.write(envelope{"guidance": NewInstructionResponse(in)}); err != nil {
				s.hub.log.Error("error writing guidance", zap.Error(err))
				s.hub.Remove(s)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// HandleMessage reads and dispatches one client message. a returned error
// means the connection is unusable; engine-level failures are reported back
// to the client instead.
func (s *Session) HandleMessage() error {
	req, err := s.readRequest()
	if err != nil {
		s.conn.Close()
		return err
	}

	if req == nil {
		return nil
	}

	validate := validator.New()

	if err := validate.Struct(req); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		return s.writeError(fmt.Sprintf("validation error: %v", vvString))
	}

	switch req.Type {
	case "locate":
		return s.handleLocate(req)
	case "destination":
		return s.handleDestination(req)
	case "start":
		return s.handleStart()
	case "heading":
		return s.handleHeading(req)
	case "steps":
		return s.handleSteps(req)
	case "frame":
		return s.handleFrame(req)
	case "skipOrientation":
		s.engine.SkipOrientation()
		return nil
	case "stop":
		s.engine.Stop()
		return s.write(envelope{"data": map[string]string{"state": s.engine.State().String()}})
	default:
		return s.writeError(fmt.Sprintf("unknown message type %q", req.Type))
	}
}

func (s *Session) handleLocate(req *sessionRequest) error {
	if len(req.Frames) == 0 {
		return s.writeError("locate requires at least one frame")
	}

	frames := make([][]byte, 0, len(req.Frames))
	for _, encoded := range req.Frames {
		frame, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return s.writeError("frames must be base64 encoded images")
		}
		frames = append(frames, frame)
	}

	match, err := s.engine.StartLocating(s.ctx, frames)
	if err != nil {
		return s.writeEngineError(err)
	}

	return s.write(envelope{"data": map[string]interface{}{
		"match": NewLocationMatchResponse(match, true),
		"state": s.engine.State().String(),
	}})
}

func (s *Session) handleDestination(req *sessionRequest) error {
	if req.DestinationId == "" {
		return s.writeError("destination requires destination_id")
	}

	route, err := s.engine.ChooseDestination(s.ctx, req.DestinationId)
	if err != nil {
		return s.writeEngineError(err)
	}

	return s.write(envelope{"data": map[string]interface{}{
		"route": NewPlanRouteResponse(route, ""),
		"state": s.engine.State().String(),
	}})
}

func (s *Session) handleStart() error {
	err := s.engine.StartNavigation(s.ctx, s.engine.CurrentRoute(), s.engine.CurrentPath())
	if err != nil {
		return s.writeEngineError(err)
	}

	return s.write(envelope{"data": map[string]string{"state": s.engine.State().String()}})
}

func (s *Session) handleHeading(req *sessionRequest) error {
	if req.Heading == nil {
		return s.writeError("heading requires a heading value")
	}
	select {
	case s.engine.HeadingUpdates() <- *req.Heading:
	default:
	}
	return nil
}

func (s *Session) handleSteps(req *sessionRequest) error {
	if req.Steps == nil {
		return s.writeError("steps requires a steps value")
	}
	select {
	case s.engine.StepUpdates() <- *req.Steps:
	default:
	}
	return nil
}

func (s *Session) handleFrame(req *sessionRequest) error {
	if req.Frame == "" {
		return s.writeError("frame requires a base64 image")
	}
	frame, err := base64.StdEncoding.DecodeString(req.Frame)
	if err != nil {
		return s.writeError("frame must be a base64 encoded image")
	}
	s.depositFrame(frame)
	return nil
}

// writeEngineError sends the failure to the client and keeps the connection
// open. the session state machine already rolled back.
func (s *Session) writeEngineError(err error) error {
	var werr *util.Error
	code := http.StatusText(http.StatusInternalServerError)
	if errors.As(err, &werr) {
		switch werr.Code() {
		case util.ErrBadParamInput:
			code = http.StatusText(http.StatusBadRequest)
		case util.ErrNotFound:
			code = http.StatusText(http.StatusNotFound)
		case util.ErrConflict:
			code = http.StatusText(http.StatusConflict)
		}
	}
	return s.write(envelope{"error": map[string]string{
		"code":    code,
		"message": err.Error(),
	}})
}

type Hub struct {
	mu  sync.RWMutex
	seq uint
	ss  []*Session
	ns  map[uint]*Session

	ctx               context.Context
	log               *zap.Logger
	navigationService NavigationService

	pool *concurrent.GoPool
}

func NewHub(ctx context.Context, pool *concurrent.GoPool,
	navigationService NavigationService, log *zap.Logger) *Hub {
	hub := &Hub{
		ctx:               ctx,
		pool:              pool,
		ns:                make(map[uint]*Session),
		ss:                make([]*Session, 0),
		navigationService: navigationService,
		log:               log,
	}

	return hub
}

func (h *Hub) Register(conn net.Conn) *Session {
	ctx, cancel := context.WithCancel(h.ctx)
	session := &Session{
		hub:    h,
		conn:   conn,
		frames: make(chan []byte, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	session.engine = h.navigationService.NewSessionEngine(session.capture)

	h.mu.Lock()
	session.id = h.seq
	h.ns[session.id] = session
	h.ss = append(h.ss, session)

	h.seq++
	h.mu.Unlock()

	go session.pumpGuidance()

	return session
}

func (h *Hub) Remove(session *Session) {
	h.mu.Lock()
	if _, oki := h.ns[session.id]; !oki {
		h.mu.Unlock()
		return
	}
	delete(h.ns, session.id)

	i := sort.Search(len(h.ss), func(i int) bool {
		return h.ss[i].id >= session.id
	})

	newSs := make([]*Session, len(h.ss)-1)
	copy(newSs[:i], h.ss[:i])
	copy(newSs[i:], h.ss[i+1:])
	h.ss = newSs

	h.mu.Unlock()

	session.cancel()
	session.engine.Stop()
	session.conn.Close()
}

func (h *Hub) RemoveAllSessions() {
	h.mu.RLock()
	sessions := make([]*Session, len(h.ss))
	copy(sessions, h.ss)
	h.mu.RUnlock()

	for _, session := range sessions {
		h.Remove(session)
	}
}
