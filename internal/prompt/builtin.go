package prompt

// 組み込みプロンプト名
const (
	NameQA           = "qa"
	NameConversation = "conversation"
)

// QATemplate はRetrievalQA（stuff）用のテンプレート
const QATemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// ConversationTemplate は会話チェーン用のテンプレート
const ConversationTemplate = `The following is a friendly conversation between a human and an AI. The AI is talkative and provides lots of specific details from its context. If the AI does not know the answer to a question, it truthfully says it does not know.

Current conversation:
{history}
Human: {input}
AI:`

// DefaultQAPrompt はQATemplateから作成したテンプレートを返す
func DefaultQAPrompt() *Template {
	return mustTemplate(QATemplate, "context", "question")
}

// DefaultConversationPrompt はConversationTemplateから作成したテンプレートを返す
func DefaultConversationPrompt() *Template {
	return mustTemplate(ConversationTemplate, "history", "input")
}

// Builtins は組み込みプロンプトを名前付きで返す
func Builtins() map[string]*Template {
	return map[string]*Template{
		NameQA:           DefaultQAPrompt(),
		NameConversation: DefaultConversationPrompt(),
	}
}

func mustTemplate(raw string, inputs ...string) *Template {
	t, err := New(raw, inputs)
	if err != nil {
		panic(err)
	}
	return t
}
