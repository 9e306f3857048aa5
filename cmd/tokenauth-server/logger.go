package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	auth "github.com/goliatone/go-auth-jwt"
)

// zapLogger adapts a sugared zap logger to auth.Logger
type zapLogger struct {
	log *zap.SugaredLogger
}

var _ auth.Logger = zapLogger{}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (z zapLogger) Debug(format string, args ...any) { z.log.Debugf(format, args...) }
func (z zapLogger) Info(format string, args ...any)  { z.log.Infof(format, args...) }
func (z zapLogger) Warn(format string, args ...any)  { z.log.Warnf(format, args...) }
func (z zapLogger) Error(format string, args ...any) { z.log.Errorf(format, args...) }

// loggingMailer logs reset and activation links instead of sending them
type loggingMailer struct {
	log     *zap.Logger
	baseURL string
}

func (m loggingMailer) SendResetPasswordEmail(_ context.Context, account *auth.Account, token string) error {
	m.log.Info("password reset requested",
		zap.String("account_id", account.ID.String()),
		zap.String("link", m.link(token)),
	)
	return nil
}

func (m loggingMailer) link(token string) string {
	return fmt.Sprintf("%s/password-reset?token=%s", m.baseURL, token)
}

func (m loggingMailer) SendActivationEmail(_ context.Context, account *auth.Account, token string) error {
	m.log.Info("account activation requested",
		zap.String("account_id", account.ID.String()),
		zap.String("link", fmt.Sprintf("%s/signup/activate?token=%s", m.baseURL, token)),
	)
	return nil
}
