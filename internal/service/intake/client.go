package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"

	"golang.org/x/sync/errgroup"
)

// Client submits page batches to the CV-analysis backend.
type Client struct {
	endpoint         string
	timeout          time.Duration
	lowPowerTimeout  time.Duration
	maxResponseBytes int64
	httpClient       *http.Client
	logger           *logger.Logger
}

// NewClient creates a Client for config.IntakeEndpoint.
func NewClient(config *config.Config, logger *logger.Logger) *Client {
	return &Client{
		endpoint:         config.IntakeEndpoint,
		timeout:          config.IntakeTimeout,
		lowPowerTimeout:  config.IntakeLowPowerTimeout,
		maxResponseBytes: config.IntakeMaxResponseBytes,
		httpClient:       &http.Client{},
		logger:           logger,
	}
}

// TimeoutFor returns the processing budget for a device.
func (c *Client) TimeoutFor(profile model.DeviceProfile) time.Duration {
	if profile.IsLowPowerDevice {
		return c.lowPowerTimeout
	}
	return c.timeout
}

// Submit sends the pages, in order, as one multipart request. Every failure
// is returned as a *model.PipelineError; pages are never modified.
func (c *Client) Submit(ctx context.Context, pages []model.CapturedPage, profile model.DeviceProfile) (*model.IntakeResult, error) {
	if len(pages) == 0 {
		return nil, model.ErrEmptyBuffer
	}

	budget := c.TimeoutFor(profile)
	reqCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() error {
		err := writeParts(gctx, form, pages)
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
		return err
	})

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, body)
	if err != nil {
		body.CloseWithError(err)
		g.Wait()
		return nil, model.NewError(model.ErrorKindNetwork, "failed to build request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	c.logger.Info("📤 Submitting %d page(s) to %s (budget %s)", len(pages), c.endpoint, budget)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		body.CloseWithError(err)
		g.Wait()
		return nil, c.transportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	// The server may answer before reading the whole body.
	body.Close()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		c.logger.Warning("Request body was not fully written: %v", werr)
	}

	result, err := c.decode(resp)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, c.transportError(ctx, reqCtx, err)
		}
		c.logger.Warning("Intake rejected after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return nil, err
	}

	c.logger.Info("📥 Intake processed in %s (confidence %.2f)", time.Since(started).Round(time.Millisecond), result.ConfidenceScore)
	return result, nil
}

func (c *Client) decode(resp *http.Response) (*model.IntakeResult, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return nil, model.NewError(model.ErrorKindNetwork, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, model.NewError(model.ErrorKindServerRejected,
			fmt.Sprintf("server returned status %d", resp.StatusCode), errors.New(truncate(string(raw), 200)))
	}

	var payload dto.IntakeResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, model.NewError(model.ErrorKindServerRejected, "response is not valid JSON", err)
	}

	result, err := payload.ToResult()
	if err != nil {
		return nil, model.NewError(model.ErrorKindServerRejected, "response is incomplete", err)
	}
	return result, nil
}

// transportError tells a cancelled session, an exhausted budget and a network failure apart.
func (c *Client) transportError(parent, reqCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return model.NewError(model.ErrorKindCancelled, "submission cancelled", err)
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return model.NewError(model.ErrorKindTimeout, "processing took too long", err)
	default:
		return model.NewError(model.ErrorKindNetwork, "could not reach the server", err)
	}
}

// writeParts writes page_0, page_1, ... in buffer order.
func writeParts(ctx context.Context, form *multipart.Writer, pages []model.CapturedPage) error {
	if err := form.WriteField("page_count", strconv.Itoa(len(pages))); err != nil {
		return err
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := fmt.Sprintf("page_%d", i)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s%s"`, name, name, page.Extension()))
		header.Set("Content-Type", page.MimeType)

		part, err := form.CreatePart(header)
		if err != nil {
			return err
		}

		rc, err := page.Image.Open()
		if err != nil {
			return fmt.Errorf("failed to open page %s: %w", page.ID, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to write page %s: %w", page.ID, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
