package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ddi-prediction-server/internal/domain"
	"github.com/ddi-prediction-server/internal/service"
)

// handleRoot handles the basic health check at the API root.
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      serviceName,
		"version":      Version,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"model_loaded": s.predictor != nil,
	})
}

// handleHealth handles the detailed health check used by monitoring.
// Returns 503 when any component check fails.
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{}
	healthy := true
	for _, hc := range s.healthChecks {
		ok := hc.Check(c.Request.Context())
		checks[hc.Name] = ok
		healthy = healthy && ok
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handlePredictInteractions is the main prediction endpoint: validate the
// raw batch, analyze every pair, return the ranked predictions with the
// batch summary and any validation warnings.
func (s *Server) handlePredictInteractions(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "No JSON data provided",
			"code":   domain.ErrInvalidInput,
			"status": "error",
		})
		return
	}

	validation, records := s.validator.ValidateBatch(payload)
	if !validation.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Input validation failed",
			"code":     domain.ErrValidation,
			"status":   "error",
			"details":  validation.Errors,
			"warnings": validation.Warnings,
		})
		return
	}

	result, err := s.predictor.Analyze(c.Request.Context(), records)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).Error("Interaction analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Internal server error",
			"code":   domain.ErrClassification,
			"status": "error",
		})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"drugs_count": result.InputDrugsCount,
		"pairs_count": result.DrugPairsAnalyzed,
	}).Info("Processed interaction prediction")

	c.JSON(http.StatusOK, gin.H{
		"status":              "success",
		"timestamp":           result.AnalyzedAt.Format(time.RFC3339),
		"input_drugs_count":   result.InputDrugsCount,
		"drug_pairs_analyzed": result.DrugPairsAnalyzed,
		"predictions":         result.Predictions,
		"summary":             result.Summary,
		"warnings":            validation.Warnings,
	})
}

// handleInfo describes the API for clients.
func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_name":    serviceName,
		"version":     Version,
		"description": "Predicts drug-drug interaction severity using machine learning",
		"endpoints": gin.H{
			"/":                     "Health check",
			"/health":               "Detailed health check",
			"/predict-interactions": "Main prediction endpoint (POST)",
			"/api/info":             "API information",
		},
		"supported_severity_levels": domain.Severities(),
		"batch_limits": gin.H{
			"min_drugs":      service.MinDrugs,
			"soft_max_drugs": service.SoftMaxDrugs,
		},
		"required_drug_fields": []string{
			"drug_name",
			"pharmacodynamic_class",
			"logp",
			"therapeutic_index",
			"transporter_interaction",
			"plasma_protein_binding",
			"metabolic_pathways",
		},
		"example_request": gin.H{
			"drugs": []gin.H{
				{
					"drug_name":               "Codeine",
					"pharmacodynamic_class":   "Opioid Analgesic",
					"logp":                    1.45,
					"therapeutic_index":       "Non-NTI",
					"transporter_interaction": "Substrate: P-gp",
					"plasma_protein_binding":  25.0,
					"metabolic_pathways":      "Substrate: CYP2D6;CYP3A4",
				},
				{
					"drug_name":               "Abiraterone",
					"pharmacodynamic_class":   "Androgen Synthesis Inhibitor",
					"logp":                    5.12,
					"therapeutic_index":       "Non-NTI",
					"transporter_interaction": "Substrate: P-gp / Inhibitor: P-gp;BCRP",
					"plasma_protein_binding":  99.0,
					"metabolic_pathways":      "Substrate: CYP3A4 / Inhibitor: CYP2D6",
				},
			},
		},
	})
}
