package httptransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	httptransport "sigreg/internal/transport/http"

	"sigreg/internal/transport"
)

type GatewaySuite struct {
	suite.Suite
	requests []capturedRequest
	status   int
	server   *httptest.Server
	gateway  *httptransport.Gateway
}

type capturedRequest struct {
	path string
	body map[string]any
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.requests = nil
	s.status = http.StatusOK

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.requests = append(s.requests, capturedRequest{path: r.URL.Path, body: body})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_ = json.NewEncoder(w).Encode(transport.MessageRef{ChatID: 42, MessageID: 7})
	}))
	s.T().Cleanup(s.server.Close)

	s.gateway = httptransport.NewGateway(s.server.URL)
}

func (s *GatewaySuite) TestSendScreen() {
	ref, err := s.gateway.SendScreen(context.Background(), 42, transport.Screen{
		Text:    "hello",
		Buttons: [][]transport.Button{{{Label: "Up", Action: "tree|browse|up|"}}},
	})
	s.Require().NoError(err)
	s.Equal(transport.MessageRef{ChatID: 42, MessageID: 7}, ref)

	s.Require().Len(s.requests, 1)
	s.Equal("/send", s.requests[0].path)
	s.Equal(float64(42), s.requests[0].body["chat_id"])
	s.Equal("hello", s.requests[0].body["text"])
}

func (s *GatewaySuite) TestEditScreen() {
	err := s.gateway.EditScreen(context.Background(),
		transport.MessageRef{ChatID: 42, MessageID: 7},
		transport.Screen{Text: "edited"})
	s.Require().NoError(err)

	s.Require().Len(s.requests, 1)
	s.Equal("/edit", s.requests[0].path)
	s.Equal("edited", s.requests[0].body["text"])
}

func (s *GatewaySuite) TestNotify() {
	err := s.gateway.Notify(context.Background(), 42, "reminder")
	s.Require().NoError(err)

	s.Require().Len(s.requests, 1)
	s.Equal("/notify", s.requests[0].path)
	s.Equal("reminder", s.requests[0].body["text"])
}

func (s *GatewaySuite) TestNon2xxIsAnError() {
	s.status = http.StatusBadGateway
	err := s.gateway.Notify(context.Background(), 42, "reminder")
	s.Require().Error(err)
	s.Contains(err.Error(), "502")
}
