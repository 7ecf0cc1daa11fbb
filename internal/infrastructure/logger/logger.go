// Package logger 初始化全局 zap 日志，并提供 gin 的日志与恢复中间件
package logger

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"course_chat_server/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init 按配置构建 zap Logger 并替换全局实例，之后各包通过 zap.L() 使用
// dev 模式同时输出到控制台和文件，其余模式只写 JSON 文件
func Init(cfg *config.LogConfig, mode string) error {
	if cfg == nil {
		return fmt.Errorf("logger.Init received nil config")
	}
	if cfg.FileName == "" {
		cfg.FileName = filepath.Join(cfg.LogPath, "app.log")
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return err
	}

	fileCore := zapcore.NewCore(jsonEncoder(), rotatingWriter(cfg), level)
	core := fileCore
	if mode == "dev" || mode == gin.DebugMode {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zapcore.DebugLevel)
		core = zapcore.NewTee(fileCore, consoleCore)
	}

	zap.ReplaceGlobals(zap.New(core, zap.AddCaller()))
	return nil
}

// rotatingWriter 基于 lumberjack 的按大小切割写入器
func rotatingWriter(cfg *config.LogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}

func jsonEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

// GinLogger 用 zap 记录每个 HTTP 请求
// WebSocket 升级请求在连接关闭后才会返回，耗时即连接时长
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("cost", time.Since(start)),
		}
		// query 中可能带有 token，不记录原文
		if c.Request.URL.RawQuery != "" && !strings.Contains(c.Request.URL.RawQuery, "token=") {
			fields = append(fields, zap.String("query", c.Request.URL.RawQuery))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("errors", errs))
		}
		zap.L().Info("http request", fields...)
	}
}

// GinRecovery 捕获 handler 中的 panic
// 客户端已断开（broken pipe）时只记录日志，不再写响应
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			fields := []zap.Field{
				zap.Any("error", rec),
				zap.String("request", string(httpRequest)),
			}

			if err, ok := rec.(error); ok && isBrokenPipeError(err) {
				zap.L().Error("broken pipe", append(fields, zap.String("path", c.Request.URL.Path))...)
				_ = c.Error(err)
				c.Abort()
				return
			}

			if stack {
				fields = append(fields, zap.String("stack", string(debug.Stack())))
			}
			zap.L().Error("[Recovery from panic]", fields...)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

func isBrokenPipeError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var syscallErr *os.SyscallError
		if errors.As(opErr.Err, &syscallErr) {
			err = syscallErr
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
