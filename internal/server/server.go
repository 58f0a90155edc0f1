package server

import (
	"errors"
	"net/http"

	"github.com/alexisrja/RemitPay/internal/metrics"
	"github.com/alexisrja/RemitPay/internal/models"
	"github.com/alexisrja/RemitPay/internal/poller"
	"github.com/alexisrja/RemitPay/internal/rates"
	"github.com/alexisrja/RemitPay/internal/remit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the remittance API over HTTP.
type Server struct {
	service *remit.Service
	poller  *poller.Controller
	engine  *gin.Engine
}

func New(service *remit.Service, pc *poller.Controller) *Server {
	s := &Server{service: service, poller: pc}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware("remitpay"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/remittance")
	api.POST("/quote", s.createQuote)
	api.POST("/send", s.send)
	api.POST("/complete/:transactionId", s.complete)
	api.POST("/check-and-complete/:transactionId", s.checkAndComplete)
	api.GET("/status/:transactionId", s.status)
	api.GET("/supported-currencies", s.supportedCurrencies)

	s.engine = router
	return s
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) createQuote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.QuotesTotal.WithLabelValues("validation_failed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required fields: senderWallet, receiverWallet, amount, currency",
		})
		return
	}

	quote, err := s.service.Quote(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, remit.ErrValidation) {
			metrics.QuotesTotal.WithLabelValues("validation_failed").Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid quote request",
				"message": err.Error(),
			})
			return
		}
		metrics.QuotesTotal.WithLabelValues("upstream_error").Inc()
		log.WithField("error", err.Error()).Error("Failed to create quote")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create quote",
			"message": err.Error(),
		})
		return
	}

	metrics.QuotesTotal.WithLabelValues("created").Inc()
	c.JSON(http.StatusOK, quote)
}

func (s *Server) send(c *gin.Context) {
	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired quote"})
		return
	}

	tx, err := s.service.Send(c.Request.Context(), req.Quote.ID, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, remit.ErrQuoteExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "The quote has expired"})
		case errors.Is(err, remit.ErrQuoteNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired quote"})
		default:
			log.WithField("error", err.Error()).Error("Failed to send remittance")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to send remittance",
				"message": err.Error(),
			})
		}
		return
	}

	// Background consent watcher; the user can also complete manually.
	s.poller.Watch(tx.ID)

	c.JSON(http.StatusOK, models.NewTransactionResponse(tx))
}

// complete is the manual completion action. Unlike the periodic check,
// a consent still outstanding is reported as an error here.
func (s *Server) complete(c *gin.Context) {
	id := c.Param("transactionId")

	tx, outcome, err := s.service.Finalize(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	switch outcome {
	case remit.OutcomeCompleted:
		c.JSON(http.StatusOK, models.NewTransactionResponse(tx))
	case remit.OutcomePendingAuthorization:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Authorization not yet granted",
			"message": "Approve the payment in your wallet, then try again.",
		})
	case remit.OutcomeAlreadyProcessed:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Transaction already processed",
			"status": tx.Status,
		})
	case remit.OutcomeConfirmationPending:
		resp := models.NewTransactionResponse(tx)
		resp.Message = "Payment created, awaiting confirmation"
		c.JSON(http.StatusOK, resp)
	case remit.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to complete the transaction",
			"message": tx.Error,
		})
	}
}

// checkAndComplete has the same semantics as complete, but an
// authorization still pending is a normal answer, so it is safe to call
// on a fixed interval.
func (s *Server) checkAndComplete(c *gin.Context) {
	id := c.Param("transactionId")

	tx, outcome, err := s.service.Finalize(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	switch outcome {
	case remit.OutcomeCompleted:
		c.JSON(http.StatusOK, models.NewTransactionResponse(tx))
	case remit.OutcomePendingAuthorization:
		resp := models.NewTransactionResponse(tx)
		resp.Message = "Waiting for user authorization"
		c.JSON(http.StatusOK, resp)
	case remit.OutcomeAlreadyProcessed:
		if tx.Status == models.StatusCompleted {
			c.JSON(http.StatusOK, models.NewTransactionResponse(tx))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Transaction already processed",
			"status": tx.Status,
		})
	case remit.OutcomeConfirmationPending:
		resp := models.NewTransactionResponse(tx)
		resp.Message = "Payment created, awaiting confirmation"
		c.JSON(http.StatusOK, resp)
	case remit.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to complete the transaction",
			"message": tx.Error,
		})
	}
}

func (s *Server) status(c *gin.Context) {
	id := c.Param("transactionId")

	tx, err := s.service.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	c.JSON(http.StatusOK, models.NewTransactionResponse(tx))
}

func (s *Server) supportedCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, rates.SupportedCurrencies())
}
