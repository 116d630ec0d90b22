package origin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/dunamismax/pixelgate/internal/storage"
)

type LambdaHandler struct {
	server *Server
}

func NewLambdaHandler(server *Server) *LambdaHandler {
	return &LambdaHandler{server: server}
}

func (h *LambdaHandler) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	if req.RequestContext.HTTP.Method != http.MethodGet {
		return h.errorResponse(http.StatusBadRequest, "only GET requests are supported"), nil
	}

	variant, err := h.server.renderVariant(ctx, req.RawPath)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidRenderPath):
			return h.errorResponse(http.StatusBadRequest, errInvalidRenderPath.Error()), nil
		case errors.Is(err, storage.ErrObjectNotFound):
			return h.errorResponse(http.StatusNotFound, "source image not found"), nil
		default:
			h.server.logger.Printf("render failed path=%s err=%v", req.RawPath, err)
			return h.errorResponse(http.StatusInternalServerError, "variant generation failed"), nil
		}
	}

	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":  variant.ContentType,
			"Cache-Control": variant.CacheControl,
			"Server-Timing": variant.ServerTiming(),
			HeaderRegion:    h.server.region,
		},
		Body:            base64.StdEncoding.EncodeToString(variant.Data),
		IsBase64Encoded: true,
	}, nil
}

func (h *LambdaHandler) errorResponse(status int, message string) events.LambdaFunctionURLResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
			HeaderRegion:   h.server.region,
		},
		Body: string(body),
	}
}
