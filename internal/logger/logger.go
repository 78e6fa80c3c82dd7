// Package logger provides the shared zap logger.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zlog はアプリケーション全体で使うロガー
// InitLogger が呼ばれるまではNopロガー
var Zlog = zap.NewNop()

// InitLogger はZlogを初期化し、終了時に呼ぶSync関数を返す
// 出力先はstderr固定（stdioトランスポートがstdoutを使うため）
func InitLogger(level, format string) func() {
	Zlog = New(os.Stderr, level, format)
	return func() { _ = Zlog.Sync() }
}

// New は指定した出力先にロガーを作成する
func New(w io.Writer, level, format string) *zap.Logger {
	if level == "" {
		level = "info"
	}

	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
