package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/scoring"
	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/signing"
)

var (
	ErrSignatureInvalid  = errors.New("signature is invalid")
	ErrPublicKeyMismatch = errors.New("public key doesn't match the key pinned for host")
)

var emptyBody = struct{}{}

// handlePostStatistics authenticates a report against the key it declares,
// pins that key to the host on first contact and appends a new observation.
func (s *Server) handlePostStatistics(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	signature := r.Header.Get(shared.SignatureHeader)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		logger.Warn("failed to read request body", zap.Error(err))
		submissionsRejected.WithLabelValues("malformed").Inc()
		s.writeSigned(w, r, http.StatusBadRequest, emptyBody)
		return
	}

	var report shared.Report
	if err := json.Unmarshal(body, &report); err != nil {
		logger.Warn("failed to decode report", zap.Error(err))
		submissionsRejected.WithLabelValues("malformed").Inc()
		s.writeSigned(w, r, http.StatusBadRequest, emptyBody)
		return
	}
	logger = logger.With(zap.String("host_id", report.HostID))

	// The signature is checked against the key the report declares.
	// Whether that key is the one pinned for the host is decided afterwards.
	ok, err := s.verifier.Verify(body, report.PublicKey, signature)
	switch {
	case errors.Is(err, signing.ErrMalformedPublicKey):
		logger.Warn("malformed public key", zap.Error(err))
		submissionsRejected.WithLabelValues("malformed").Inc()
		s.writeSigned(w, r, http.StatusBadRequest, emptyBody)
		return
	case err != nil || !ok:
		logger.Warn("Incorrect signature for host", zap.Error(ErrSignatureInvalid))
		submissionsRejected.WithLabelValues("signature").Inc()
		s.writeSigned(w, r, http.StatusUnauthorized, emptyBody)
		return
	}

	var observation shared.Observation
	err = s.store.Update(report.HostID, func(rec *shared.HostRecord) (*shared.HostRecord, error) {
		if rec == nil {
			rec = &shared.HostRecord{PublicKey: report.PublicKey}
		} else if rec.PublicKey != report.PublicKey {
			return nil, ErrPublicKeyMismatch
		}
		observation = shared.NewObservation(report, uuid.NewString(), s.now())
		rec.Observations = append(rec.Observations, observation)
		return rec, nil
	})
	switch {
	case errors.Is(err, ErrPublicKeyMismatch):
		logger.Warn("Incorrect signature for host", zap.Error(err))
		submissionsRejected.WithLabelValues("key_mismatch").Inc()
		s.writeSigned(w, r, http.StatusUnauthorized, emptyBody)
		return
	case err != nil:
		logger.Error("failed to store observation", zap.Error(err))
		s.writeSigned(w, r, http.StatusInternalServerError, emptyBody)
		return
	}

	observationsAccepted.Inc()
	logger.Debug("observation accepted", zap.String("id", observation.ID))
	s.writeSigned(w, r, http.StatusCreated, shared.StatisticsResponse{
		Data:      observation,
		HostID:    s.hostID,
		PublicKey: s.identity.PublicKeyText(),
	})
}

// handleGetProofOfComputation scores every unconsumed observation of a host.
// Observations are never marked as consumed, so repeated queries cover the full history.
func (s *Server) handleGetProofOfComputation(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "host_id")

	rec, ok := s.store.Get(hostID)
	if !ok {
		proofQueries.WithLabelValues("not_found").Inc()
		s.writeSigned(w, r, http.StatusNotFound, emptyBody)
		return
	}

	entries, total := scoring.ProofOfComputation(rec.Observations)
	proofQueries.WithLabelValues("found").Inc()
	s.writeSigned(w, r, http.StatusCreated, shared.ProofResponse{
		Data:               entries,
		HostID:             s.hostID,
		ProofOfComputation: total,
		PublicKey:          s.identity.PublicKeyText(),
	})
}

// writeSigned encodes v as JSON and signs the exact bytes written.
func (s *Server) writeSigned(w http.ResponseWriter, r *http.Request, status int, v any) {
	logger := logging.FromContext(r.Context())

	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	signature, err := s.identity.Sign(body)
	if err != nil {
		logger.Error("failed to sign response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set(shared.ContentTypeHeader, shared.ContentTypeJSON)
	w.Header().Set(shared.SignatureHeader, signature)
	w.Header().Set(shared.UserAgentHeader, shared.UserAgent(s.cfg.Version))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("failed to write response", zap.Error(err))
	}
}
