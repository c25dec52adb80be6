package client

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局可用的 SugaredLogger；未初始化时为 no-op，测试与库调用无需先 InitLogger
var Log = zap.NewNop().Sugar()

// LogOptions 日志文件滚动参数
type LogOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string
	// Format 为 "json" 时输出 JSON 行，其余为控制台格式
	Format string
}

// InitLogger 初始化 zap 日志到本地文件（支持滚动）
// 终端界面占用 stdout，所以日志只写文件
func InitLogger(filePath string, opts LogOptions) error {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 7
	}
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB, // MB
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays, // days
		Compress:   false,
	}

	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return err
		}
	}

	core := zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(lj), level)
	logger := zap.New(core, zap.AddCaller())
	Log = logger.Sugar()
	return nil
}

// newEncoder 以 zap 生产配置为底，时间用 ISO8601，级别大写
func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.StacktraceKey = "stack"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// SyncLogger 清理和同步缓冲
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
