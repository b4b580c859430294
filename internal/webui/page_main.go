package webui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

type mainDataBuilder struct{}

func (mainDataBuilder) Build(ctx context.Context, bc builderCtx) (any, error) {
	type data struct {
		UserCount int64
	}

	cnt, err := bc.Config.UserManager.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return &data{UserCount: cnt}, nil
}

func mainPage(log *slog.Logger, cfg *Config, templ *templator) (http.Handler, error) {
	return newPage(log, cfg, pageOptions{FullUser: true}, templ, mainDataBuilder{}, "main")
}
