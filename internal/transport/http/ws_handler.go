package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"cloudops-quiz-engine/internal/app"
	"cloudops-quiz-engine/internal/domain"
	"cloudops-quiz-engine/internal/logging"
	"cloudops-quiz-engine/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServiceFactory builds the quiz service for one tab. tabID scopes the
// volatile store; clientID scopes the durable store.
type ServiceFactory func(tabID, clientID string) *app.QuizService

// WSHandler drives one quiz tab per websocket connection.
type WSHandler struct {
	newService ServiceFactory
	tabs       *app.Tabs
	upgrader   websocket.Upgrader
}

func NewWSHandler(newService ServiceFactory, tabs *app.Tabs) *WSHandler {
	if tabs == nil {
		tabs = app.NewTabs()
	}
	return &WSHandler{
		newService: newService,
		tabs:       tabs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type startPayload struct {
	Mode        domain.Mode   `json:"mode"`
	TargetCount int           `json:"targetCount"`
	Domain      domain.Domain `json:"domain"`
}

type answerPayload struct {
	QuestionID string             `json:"questionId"`
	Answer     domain.AnswerValue `json:"answer"`
}

type countPayload struct {
	Count int `json:"count"`
}

type readyPayload struct {
	TabID     string `json:"tabId"`
	Questions int    `json:"questions"`
}

type sessionView struct {
	ID           string          `json:"id"`
	Mode         domain.Mode     `json:"mode"`
	TargetCount  int             `json:"targetCount,omitempty"`
	DomainFilter domain.Domain   `json:"domainFilter,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	Progress     domain.Progress `json:"progress"`
}

type resumedPayload struct {
	State   session.RecoveryState `json:"state"`
	Session *sessionView          `json:"session"`
}

// questionView hides the answer while the question is being asked.
type questionView struct {
	ID         string              `json:"id"`
	Domain     domain.Domain       `json:"domain"`
	Difficulty domain.Difficulty   `json:"difficulty"`
	Type       domain.QuestionType `json:"type"`
	Prompt     string              `json:"question"`
	Options    []string            `json:"options"`
	Scenario   string              `json:"scenario,omitempty"`
}

type answerResult struct {
	QuestionID        string                    `json:"questionId"`
	IsCorrect         bool                      `json:"isCorrect"`
	CorrectAnswer     domain.AnswerValue        `json:"correctAnswer"`
	Explanation       string                    `json:"explanation,omitempty"`
	LearningResources []domain.LearningResource `json:"learningResources,omitempty"`
	Progress          domain.Progress           `json:"progress"`
	IsComplete        bool                      `json:"isComplete"`
}

// servedQuestion remembers when the current question went out.
type servedQuestion struct {
	id string
	at time.Time
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Query parameters: tabId (kept by the page across reconnects) and clientId (the profile).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	tabID := r.URL.Query().Get("tabId")
	if tabID == "" {
		tabID = uuid.NewString()
	}
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "missing clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	service := h.newService(tabID, clientID)
	h.tabs.Add(tabID, service)
	defer h.tabs.Remove(tabID, service)

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn().Err(err).Str("tab", tabID).Msg("ws write error")
				// unblock the read loop
				_ = conn.Close()
				return
			}
		}
	}()

	c := &wsConn{service: service, send: send, done: writerDone}
	if pool, err := service.Init(ctx); err != nil {
		c.fail(err)
	} else {
		c.emit("ready", readyPayload{TabID: tabID, Questions: pool.Len()})
	}

	for c.open() {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(ctx, inbound)
	}

	// page unload: keep the live session recoverable
	if _, err := service.Backup(context.Background()); err != nil {
		logger.Warn().Err(err).Str("tab", tabID).Msg("backup on close failed")
	}
	close(send)
	<-writerDone
}

// wsConn holds per-connection state. It is only used from the read loop.
type wsConn struct {
	service *app.QuizService
	send    chan<- outboundMessage
	done    <-chan struct{}
	served  *servedQuestion
}

// emit drops the message once the writer has stopped.
func (c *wsConn) emit(typ string, payload any) {
	select {
	case c.send <- outboundMessage{Type: typ, Payload: payload}:
	case <-c.done:
	}
}

func (c *wsConn) open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *wsConn) fail(err error) {
	c.emit("error", toErrorPayload(err))
}

func (c *wsConn) handle(ctx context.Context, in inboundMessage) {
	switch in.Type {
	case "start":
		var p startPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.fail(err)
			return
		}
		s, err := c.service.Start(ctx, session.Config{Mode: p.Mode, TargetCount: p.TargetCount, DomainFilter: p.Domain})
		if err != nil {
			c.fail(err)
			return
		}
		c.served = nil
		c.emit("started", viewSession(s))
	case "resume":
		s, state, err := c.service.Resume(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		out := resumedPayload{State: state}
		if s != nil {
			out.Session = viewSession(s)
		}
		c.emit("resumed", out)
	case "retry":
		pool, err := c.service.Reload(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("ready", readyPayload{Questions: pool.Len()})
	case "next":
		q, err := c.service.NextQuestion(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		if q == nil {
			c.emit("exhausted", struct{}{})
			return
		}
		c.served = &servedQuestion{id: q.ID, at: time.Now()}
		c.emit("question", viewQuestion(*q))
	case "answer":
		var p answerPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.fail(err)
			return
		}
		c.answer(ctx, p)
	case "stats":
		stats, err := c.service.Statistics(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("stats", stats)
	case "progress":
		progress, err := c.service.Progress(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("progress", progress)
	case "end":
		entry, err := c.service.End(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.served = nil
		c.emit("ended", entry)
	case "clear":
		if err := c.service.Clear(ctx); err != nil {
			c.fail(err)
			return
		}
		c.served = nil
		c.emit("cleared", struct{}{})
	case "review":
		var p countPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			c.fail(err)
			return
		}
		if p.Count <= 0 {
			p.Count = 10
		}
		qs, err := c.service.ReviewQuestions(ctx, p.Count)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("review", qs)
	case "history":
		entries, err := c.service.History(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("history", entries)
	default:
		c.emit("error", errorPayload{Message: "unsupported message type"})
	}
}

func (c *wsConn) answer(ctx context.Context, p answerPayload) {
	in := app.AnswerInput{QuestionID: p.QuestionID, UserAnswer: p.Answer}
	if c.served != nil && c.served.id == p.QuestionID {
		at := c.served.at
		in.StartedAt = &at
	}
	answer, updated, err := c.service.RecordAnswer(ctx, in)
	if err != nil {
		c.fail(err)
		return
	}
	c.served = nil

	progress := session.GetProgress(updated)
	result := answerResult{
		QuestionID:    answer.QuestionID,
		IsCorrect:     answer.IsCorrect,
		CorrectAnswer: answer.CorrectAnswer,
		Progress:      progress,
		IsComplete:    progress.IsComplete,
	}
	if pool := c.service.Pool(); pool != nil {
		if q, ok := pool.Get(answer.QuestionID); ok {
			result.Explanation = q.Explanation
			result.LearningResources = q.LearningResources
		}
	}
	c.emit("answerResult", result)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &domain.ValidationError{Field: "payload", Message: err.Error()}
	}
	return nil
}

func viewSession(s *domain.Session) *sessionView {
	return &sessionView{
		ID:           s.ID,
		Mode:         s.Mode,
		TargetCount:  s.TargetCount,
		DomainFilter: s.DomainFilter,
		StartedAt:    s.StartedAt,
		Progress:     session.GetProgress(s),
	}
}

func viewQuestion(q domain.Question) questionView {
	return questionView{
		ID:         q.ID,
		Domain:     q.Domain,
		Difficulty: q.Difficulty,
		Type:       q.Type,
		Prompt:     q.Prompt,
		Options:    q.Options,
		Scenario:   q.Scenario,
	}
}
