package server

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/export"
	"github.com/fraudsight/fraudsight/internal/pipeline"
	"github.com/fraudsight/fraudsight/internal/risk"
)

const maxReceiptBytes = 10 << 20 // 10MB upload cap

// Server exposes the prediction pipeline over HTTP.
type Server struct {
	app      *fiber.App
	coord    *pipeline.Coordinator
	exporter *export.Service
	logger   *slog.Logger
}

func New(coord *pipeline.Coordinator, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:               "fraudsight",
		BodyLimit:             maxReceiptBytes,
		DisableStartupMessage: true,
	})

	s := &Server{app: app, coord: coord, exporter: exporter, logger: logger}

	app.Get("/health", s.Health)
	app.Post("/predict", s.Predict)
	app.Get("/export", s.Export)

	return s
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http serving", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Health(c *fiber.Ctx) error {
	status := "ok"
	if !s.coord.Ready() {
		// process is up but every scoring request will fail
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":       status,
		"model_loaded": s.coord.Ready(),
	})
}

func (s *Server) Predict(c *fiber.Ctx) error {
	features, err := parseFeatures(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "receipt image is required",
		})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read receipt upload",
		})
	}
	raw, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read receipt upload",
		})
	}

	ctx := common.WithRequestID(c.UserContext(), common.NewRequestID())
	start := time.Now()
	resp, err := s.coord.Handle(ctx, features, raw)
	if err != nil {
		if errors.Is(err, common.ErrModelUnavailable) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Model not loaded",
			})
		}
		s.logger.Error("prediction failed",
			"request_id", common.RequestIDFromContext(ctx), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "prediction failed",
		})
	}

	s.logger.Info("prediction ok",
		"request_id", common.RequestIDFromContext(ctx),
		"fraud", resp.FraudPrediction,
		"probability", resp.FraudProbability,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return c.JSON(resp)
}

func (s *Server) Export(c *fiber.Ctx) error {
	if s.exporter == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "export not enabled",
		})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	out, err := s.exporter.PredictionsXLSX(c.UserContext(), limit)
	if err != nil {
		s.logger.Error("export failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "export failed",
		})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="predictions.xlsx"`)
	return c.Send(out)
}

func parseFeatures(c *fiber.Ctx) (risk.Features, error) {
	var f risk.Features

	amount, err := strconv.ParseFloat(c.FormValue("amount"), 64)
	if err != nil {
		return f, errors.New("amount must be a number")
	}
	bin, err := strconv.Atoi(c.FormValue("bin"))
	if err != nil {
		return f, errors.New("bin must be an integer")
	}
	merchantAge, err := strconv.Atoi(c.FormValue("merchant_age"))
	if err != nil {
		return f, errors.New("merchant_age must be an integer")
	}
	hour, err := strconv.Atoi(c.FormValue("hour"))
	if err != nil {
		return f, errors.New("hour must be an integer")
	}
	if hour < 0 || hour > 23 {
		return f, errors.New("hour must be in [0,23]")
	}

	f = risk.Features{
		Amount:      amount,
		Geo:         c.FormValue("geo"),
		BIN:         bin,
		MerchantAge: merchantAge,
		Hour:        hour,
	}
	return f, nil
}
