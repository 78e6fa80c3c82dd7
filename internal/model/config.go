package model

// Config はアプリケーション全体の設定を表す
type Config struct {
	TransportDefaults TransportDefaults       `json:"transportDefaults" yaml:"transportDefaults"`
	LLM               LLMConfig               `json:"llm" yaml:"llm"`
	Embedder          EmbedderConfig          `json:"embedder" yaml:"embedder"`
	Store             StoreConfig             `json:"store" yaml:"store"`
	Splitter          SplitterConfig          `json:"splitter" yaml:"splitter"`
	QA                QAConfig                `json:"qa" yaml:"qa"`
	Memory            MemoryConfig            `json:"memory" yaml:"memory"`
	Prompts           map[string]PromptConfig `json:"prompts,omitempty" yaml:"prompts,omitempty" validate:"omitempty,dive"`
	Log               LogConfig               `json:"log" yaml:"log"`
	Paths             PathsConfig             `json:"paths" yaml:"paths"`
}

// TransportDefaults はtransportのデフォルト設定
type TransportDefaults struct {
	DefaultTransport string   `json:"defaultTransport" yaml:"defaultTransport" validate:"oneof=stdio http"`
	CORSOrigins      []string `json:"corsOrigins,omitempty" yaml:"corsOrigins,omitempty" validate:"omitempty,dive,url"`
}

// LLMConfig はチャットモデルの設定
type LLMConfig struct {
	Provider       string        `json:"provider" yaml:"provider" validate:"oneof=openai ollama echo"`
	Model          string        `json:"model" yaml:"model" validate:"required"`
	Temperature    float64       `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int           `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty" validate:"gte=0"`
	BaseURL        *string       `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	APIKey         *string       `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	TimeoutSeconds int           `json:"timeoutSeconds" yaml:"timeoutSeconds" validate:"gte=0"`
	Breaker        BreakerConfig `json:"breaker" yaml:"breaker"`
}

// BreakerConfig はLLM呼び出しのサーキットブレーカー設定
type BreakerConfig struct {
	MaxRequests      uint32  `json:"maxRequests" yaml:"maxRequests"`
	IntervalSeconds  int     `json:"intervalSeconds" yaml:"intervalSeconds" validate:"gte=0"`
	TimeoutSeconds   int     `json:"timeoutSeconds" yaml:"timeoutSeconds" validate:"gte=0"`
	FailureThreshold float64 `json:"failureThreshold" yaml:"failureThreshold" validate:"gte=0,lte=1"`
	MinRequests      uint32  `json:"minRequests" yaml:"minRequests"`
}

// EmbedderConfig はembedder設定
type EmbedderConfig struct {
	Provider string  `json:"provider" yaml:"provider" validate:"oneof=openai ollama local"`
	Model    string  `json:"model" yaml:"model" validate:"required"`
	Dim      int     `json:"dim" yaml:"dim" validate:"gte=0"` // 0は未設定
	BaseURL  *string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	APIKey   *string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

// StoreConfig はvector store設定
type StoreConfig struct {
	Type string  `json:"type" yaml:"type" validate:"oneof=memory sqlite qdrant"`
	Path *string `json:"path,omitempty" yaml:"path,omitempty"` // SQLite用
	URL  *string `json:"url,omitempty" yaml:"url,omitempty"`   // Qdrant用
}

// SplitterConfig はチャンク分割の設定
type SplitterConfig struct {
	ChunkSize    int `json:"chunkSize" yaml:"chunkSize" validate:"gt=0"`
	ChunkOverlap int `json:"chunkOverlap" yaml:"chunkOverlap" validate:"gte=0"`
}

// QAConfig はドキュメントQAの設定
type QAConfig struct {
	TopK              int     `json:"topK" yaml:"topK" validate:"gte=1"`
	Temperature       float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	DefaultCollection string  `json:"defaultCollection" yaml:"defaultCollection" validate:"required"`
}

// MemoryConfig は会話メモリの設定（0以下は無制限）
type MemoryConfig struct {
	MaxTurns int `json:"maxTurns" yaml:"maxTurns"`
}

// PromptConfig は名前付きプロンプトの定義
type PromptConfig struct {
	Template         string            `json:"template" yaml:"template" validate:"required"`
	InputVariables   []string          `json:"inputVariables,omitempty" yaml:"inputVariables,omitempty"`
	PartialVariables map[string]string `json:"partialVariables,omitempty" yaml:"partialVariables,omitempty"`
	Format           string            `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=fstring jinja2"`
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json console"`
}

// PathsConfig はファイルパス設定
type PathsConfig struct {
	ConfigPath string `json:"configPath" yaml:"configPath"`
	DataDir    string `json:"dataDir" yaml:"dataDir"`
}

// Transport定数
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Provider定数（LLM / Embedder 共通）
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
	ProviderEcho   = "echo"
)

// Store Type定数
const (
	StoreTypeMemory = "memory"
	StoreTypeSQLite = "sqlite"
	StoreTypeQdrant = "qdrant"
)

// DefaultCollection は未指定時のコレクション名
const DefaultCollection = "default"
