package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/messaging"
	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/BTreeMap/TastingFlow/internal/store"
	"github.com/BTreeMap/TastingFlow/internal/util"
)

// joinCodeAttempts bounds retries when a generated join code is already taken.
const joinCodeAttempts = 5

// API lookup errors.
var (
	ErrUnknownPackage     = errors.New("package not found")
	ErrUnknownTastingCode = errors.New("no tasting uses this code")
)

func (s *Server) listPackagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listPackagesHandler: processing request", "path", r.URL.Path)
	packages, err := s.st.ListPackages(r.Context())
	if err != nil {
		slog.Error("Server.listPackagesHandler: failed to list packages", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list packages"))
		return
	}
	if packages == nil {
		packages = []models.Package{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(packages))
}

func (s *Server) createTastingHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createTastingHandler: processing request", "path", r.URL.Path)
	var req models.TastingRequest
	if !decodeJSON(w, r, "createTastingHandler", &req) {
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createTastingHandler: validation failed", "error", err)
		writeFieldError(w, http.StatusBadRequest, "package_id", err)
		return
	}

	hostPhone := ""
	if req.HostPhone != "" {
		canonical, err := messaging.CanonicalizePhone(req.HostPhone)
		if err != nil {
			slog.Warn("Server.createTastingHandler: host phone rejected", "error", err)
			writeFieldError(w, http.StatusBadRequest, "host_phone", err)
			return
		}
		hostPhone = canonical
	}

	ctx := r.Context()
	pkg, err := s.st.GetPackage(ctx, req.PackageID)
	if err != nil {
		slog.Error("Server.createTastingHandler: package lookup failed", "error", err, "packageID", req.PackageID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up package"))
		return
	}
	if pkg == nil {
		writeFieldError(w, http.StatusNotFound, "package_id", ErrUnknownPackage)
		return
	}

	tasting := models.Tasting{
		PackageID: req.PackageID,
		HostName:  req.HostName,
		HostPhone: hostPhone,
		CreatedAt: time.Now().UTC(),
	}
	for attempt := 1; ; attempt++ {
		tasting.Code = util.GenerateJoinCode(util.DefaultJoinCodeLength)
		err = s.st.SaveTasting(ctx, tasting)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateTasting) || attempt == joinCodeAttempts {
			slog.Error("Server.createTastingHandler: failed to save tasting", "error", err, "attempt", attempt)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to open tasting"))
			return
		}
		slog.Debug("Server.createTastingHandler: join code taken, retrying", "code", tasting.Code, "attempt", attempt)
	}

	slog.Info("Server.createTastingHandler: tasting opened", "code", tasting.Code, "packageID", tasting.PackageID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Tasting opened", tasting))
}

func (s *Server) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	code := util.NormalizeJoinCode(r.PathValue("code"))
	slog.Debug("Server.listSubmissionsHandler: processing request", "code", code)

	ctx := r.Context()
	tasting, err := s.st.GetTastingByCode(ctx, code)
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: tasting lookup failed", "error", err, "code", code)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up tasting"))
		return
	}
	if tasting == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(ErrUnknownTastingCode.Error()))
		return
	}
	subs, err := s.st.ListSubmissions(ctx, code)
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: failed to list submissions", "error", err, "code", code)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(subs))
}
