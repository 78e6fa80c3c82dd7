package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/brbranch/promptchain/internal/chain"
	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/memory"
	"github.com/brbranch/promptchain/internal/metrics"
	"github.com/brbranch/promptchain/internal/prompt"
)

// conversationService はConversationServiceの実装
type conversationService struct {
	llm       llm.LLM
	memory    *memory.Buffer
	manager   *config.Manager
	collector *metrics.Collector
}

// NewConversationService はConversationServiceの新しいインスタンスを作成
func NewConversationService(l llm.LLM, mem *memory.Buffer, mgr *config.Manager, collector *metrics.Collector) ConversationService {
	return &conversationService{
		llm:       l,
		memory:    mem,
		manager:   mgr,
		collector: collector,
	}
}

// Chat はセッションの履歴を踏まえて応答する
func (s *conversationService) Chat(ctx context.Context, req *ChatRequest) (resp *ChatResponse, err error) {
	defer func() { s.collector.ObserveChain(chainConversation, err) }()

	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrMessageRequired
	}

	sessionID := uuid.New().String()
	if req.SessionID != nil && *req.SessionID != "" {
		sessionID = *req.SessionID
	}

	var opts llm.Options
	if s.manager != nil {
		opts.Temperature = llm.Float64(s.manager.GetConfig().LLM.Temperature)
	}

	convPrompt, err := configuredPrompt(s.manager, prompt.NameConversation)
	if err != nil {
		return nil, err
	}
	conv, err := chain.NewConversationChain(s.llm, s.memory, convPrompt, opts)
	if err != nil {
		return nil, err
	}

	reply, err := conv.Predict(ctx, sessionID, req.Message)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		SessionID: sessionID,
		Reply:     reply,
		Turns:     s.memory.Turns(sessionID),
	}, nil
}

// ClearSession はセッションの履歴を削除する
func (s *conversationService) ClearSession(ctx context.Context, sessionID string) (*ClearSessionResponse, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	return &ClearSessionResponse{Cleared: s.memory.Clear(sessionID)}, nil
}
