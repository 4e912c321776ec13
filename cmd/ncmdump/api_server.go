package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

const timeout = 10 * time.Second

// maxDumpBody bounds the size of an uploaded container.
const maxDumpBody = 1 << 30

type ApiServer struct {
	allowOrigin string
	certFile    string
	keyFile     string

	close    bool
	listener net.Listener
	announce *zeroconf.Server

	requests chan ApiRequest

	clients     []*websocket.Conn
	clientsLock sync.RWMutex
}

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

type ApiRequestType string

const (
	ApiRequestTypeStatus   ApiRequestType = "status"
	ApiRequestTypeDump     ApiRequestType = "dump"
	ApiRequestTypeDumpFile ApiRequestType = "dump_file"
)

type ApiEventType string

const (
	ApiEventTypeDecoded ApiEventType = "decoded"
	ApiEventTypeFailed  ApiEventType = "failed"
)

type ApiRequest struct {
	Type ApiRequestType
	Data any

	resp chan apiResponse
}

func (r *ApiRequest) Reply(data any, err error) {
	r.resp <- apiResponse{data, err}
}

type apiResponse struct {
	data any
	err  error
}

type ApiRequestDataDump struct {
	Body []byte
	Raw  bool
}

type ApiRequestDataDumpFile struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir"`
}

type ApiResponseStatus struct {
	Version     string   `json:"version"`
	Workers     int      `json:"workers"`
	Decoded     int64    `json:"decoded"`
	Failed      int64    `json:"failed"`
	WatchedDirs []string `json:"watched_dirs"`
}

type ApiResponseDump struct {
	Result    string `json:"result"`
	Extension string `json:"extension"`
	Metadata  string `json:"metadata"`
	Data      []byte `json:"data"`
}

type ApiResponseDumpRaw struct {
	Data      []byte
	Extension string
	Mime      string
}

type ApiResponseDumpFile struct {
	Result    string `json:"result"`
	Output    string `json:"output"`
	Extension string `json:"extension"`
}

type ApiEvent struct {
	Type ApiEventType `json:"type"`
	Data any          `json:"data"`
}

type ApiEventDataConvert struct {
	Path      string `json:"path"`
	Output    string `json:"output,omitempty"`
	Extension string `json:"extension,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newConvertEvent(path string, res ConvertResult) *ApiEvent {
	if res.Err != nil {
		return &ApiEvent{Type: ApiEventTypeFailed, Data: ApiEventDataConvert{Path: path, Error: res.Err.Error()}}
	}

	return &ApiEvent{Type: ApiEventTypeDecoded, Data: ApiEventDataConvert{Path: path, Output: res.Output, Extension: res.Extension}}
}

func NewApiServer(cfg *Config) (_ *ApiServer, err error) {
	s := &ApiServer{
		allowOrigin: cfg.Server.AllowOrigin,
		certFile:    cfg.Server.CertFile,
		keyFile:     cfg.Server.KeyFile,
	}
	s.requests = make(chan ApiRequest)

	s.listener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port))
	if err != nil {
		return nil, fmt.Errorf("failed starting api listener: %w", err)
	}

	if cfg.Server.MaxClients > 0 {
		s.listener = netutil.LimitListener(s.listener, cfg.Server.MaxClients)
	}

	if cfg.Server.Announce {
		port := s.listener.Addr().(*net.TCPAddr).Port
		s.announce, err = zeroconf.Register("ncmdump", "_ncmdump._tcp", "local.", port, []string{"version=" + ncmdump.VersionNumberString()}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed announcing api server: %w", err)
		}
	}

	log.Infof("api server listening on %s", s.listener.Addr())

	go s.serve()
	return s, nil
}

func (s *ApiServer) handleRequest(req ApiRequest, w http.ResponseWriter) {
	req.resp = make(chan apiResponse, 1)
	s.requests <- req
	resp := <-req.resp

	if resp.err != nil {
		switch {
		case errors.Is(resp.err, ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			return
		case errors.Is(resp.err, ErrMethodNotAllowed):
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		case errors.Is(resp.err, ErrBadRequest):
			w.WriteHeader(http.StatusBadRequest)
			return
		default:
			log.WithError(resp.err).Errorf("failed handling request %s", req.Type)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	switch respData := resp.data.(type) {
	case *ApiResponseDumpRaw:
		w.Header().Set("Content-Type", respData.Mime)
		w.Header().Set("X-Extension", respData.Extension)
		_, _ = w.Write(respData.Data)
	case *ApiResponseDump:
		w.Header().Set("Content-Type", "application/json")
		if respData.Result != "ok" {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(w).Encode(respData)
	case *ApiResponseDumpFile:
		w.Header().Set("Content-Type", "application/json")
		if respData.Result != "ok" {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(w).Encode(respData)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respData)
	}
}

func (s *ApiServer) serve() {
	m := http.NewServeMux()
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	})
	m.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		s.handleRequest(ApiRequest{Type: ApiRequestTypeStatus}, w)
	})
	m.HandleFunc("/dump", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxDumpBody))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		} else if len(body) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		raw := strings.Contains(r.Header.Get("Accept"), "application/octet-stream")
		s.handleRequest(ApiRequest{Type: ApiRequestTypeDump, Data: ApiRequestDataDump{Body: body, Raw: raw}}, w)
	})
	m.HandleFunc("/dump/file", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var data ApiRequestDataDumpFile
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if len(data.Path) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.handleRequest(ApiRequest{Type: ApiRequestTypeDumpFile, Data: data}, w)
	})
	m.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{}
		if len(s.allowOrigin) > 0 {
			allow := s.allowOrigin
			allow = strings.TrimPrefix(allow, "http://")
			allow = strings.TrimPrefix(allow, "https://")
			allow = strings.TrimSuffix(allow, "/")
			opts.OriginPatterns = []string{allow}
		}

		c, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.WithError(err).Error("failed accepting websocket connection")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		// add the client to the list
		s.clientsLock.Lock()
		s.clients = append(s.clients, c)
		s.clientsLock.Unlock()

		log.Debugf("new websocket client")

		for {
			_, _, err := c.Read(context.Background())
			if s.close {
				return
			} else if err != nil {
				log.WithError(err).Error("websocket connection errored")

				// remove the client from the list
				s.clientsLock.Lock()
				for i, cc := range s.clients {
					if cc == c {
						s.clients = append(s.clients[:i], s.clients[i+1:]...)
						break
					}
				}
				s.clientsLock.Unlock()
				return
			}
		}
	})

	c := cors.New(cors.Options{
		AllowedOrigins:      []string{s.allowOrigin},
		AllowPrivateNetwork: true,
		AllowCredentials:    true,
	})

	var err error
	if len(s.certFile) > 0 && len(s.keyFile) > 0 {
		err = http.ServeTLS(s.listener, c.Handler(m), s.certFile, s.keyFile)
	} else {
		err = http.Serve(s.listener, c.Handler(m))
	}

	if s.close {
		return
	} else if err != nil {
		log.WithError(err).Fatal("failed serving api")
	}
}

func (s *ApiServer) Emit(ev *ApiEvent) {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()

	log.Tracef("emitting websocket event: %s", ev.Type)

	for _, client := range s.clients {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := wsjson.Write(ctx, client, ev)
		cancel()
		if err != nil {
			// purposely do not propagate this to the caller
			log.WithError(err).Error("failed communicating with websocket client")
		}
	}
}

func (s *ApiServer) Receive() <-chan ApiRequest {
	return s.requests
}

func (s *ApiServer) Close() {
	s.close = true

	if s.announce != nil {
		s.announce.Shutdown()
	}

	// close all websocket clients
	s.clientsLock.RLock()
	for _, client := range s.clients {
		_ = client.Close(websocket.StatusGoingAway, "")
	}
	s.clientsLock.RUnlock()

	// close the listener
	_ = s.listener.Close()
}
