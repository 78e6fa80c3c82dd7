// Package memory keeps per-session conversation history for chat chains.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/brbranch/promptchain/internal/llm"
)

// 履歴の話者プレフィックス
const (
	HumanPrefix = "Human"
	AIPrefix    = "AI"
)

// Buffer はセッションごとの会話履歴をメモリ上に保持する
// maxTurnsを超えた分は古いターンから捨てる（0以下は無制限）
type Buffer struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string][]turn
}

type turn struct {
	input  string
	output string
}

// NewBuffer はBufferを作成する
func NewBuffer(maxTurns int) *Buffer {
	return &Buffer{
		maxTurns: maxTurns,
		sessions: make(map[string][]turn),
	}
}

// SaveTurn は1往復分の入出力を保存する
func (b *Buffer) SaveTurn(sessionID, input, output string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	turns := append(b.sessions[sessionID], turn{input: input, output: output})
	if b.maxTurns > 0 && len(turns) > b.maxTurns {
		turns = append([]turn(nil), turns[len(turns)-b.maxTurns:]...)
	}
	b.sessions[sessionID] = turns
}

// Messages は履歴をチャットメッセージ列として返す
func (b *Buffer) Messages(sessionID string) []llm.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	turns := b.sessions[sessionID]
	messages := make([]llm.Message, 0, len(turns)*2)
	for _, t := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.input},
			llm.Message{Role: llm.RoleAssistant, Content: t.output},
		)
	}
	return messages
}

// History はプロンプトに埋め込む形式の履歴文字列を返す
func (b *Buffer) History(sessionID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := make([]string, 0, len(b.sessions[sessionID])*2)
	for _, t := range b.sessions[sessionID] {
		lines = append(lines, HumanPrefix+": "+t.input, AIPrefix+": "+t.output)
	}
	return strings.Join(lines, "\n")
}

// Turns はセッションのターン数を返す
func (b *Buffer) Turns(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[sessionID])
}

// Clear はセッションの履歴を削除し、存在したかどうかを返す
func (b *Buffer) Clear(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	return ok
}

// Sessions はセッションIDをソートして返す
func (b *Buffer) Sessions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
