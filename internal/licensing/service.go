package licensing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/licensehub/licensehub/internal/audit"
)

const (
	auditEntity        = "company"
	actionCreate       = "company.create"
	actionUpdate       = "company.update"
	defaultStorageWait = 5 * time.Second
	historyLimit       = 100
)

// AuditTrail persists and reads the mutation history.
type AuditTrail interface {
	Record(ctx context.Context, entry audit.Entry) error
	History(ctx context.Context, entity, entityID string, limit int) ([]audit.Entry, error)
}

// NameResolver maps staff ids to display names.
type NameResolver interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	// Location is the reference timezone for subscription expiry.
	Location *time.Location
	// StorageTimeout bounds every registry call.
	StorageTimeout time.Duration
	Now            func() time.Time
}

// Service exposes the administrative operations and license verification.
type Service struct {
	registry Registry
	trail    AuditTrail
	names    NameResolver
	recorder *AuditRecorder
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
	timeout  time.Duration
}

// NewService wires a Service. trail, names and metrics may be nil.
func NewService(registry Registry, trail AuditTrail, names NameResolver, metrics *Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = defaultStorageWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		trail:    trail,
		names:    names,
		recorder: NewAuditRecorder(cfg.Now),
		metrics:  metrics,
		logger:   logger,
		now:      cfg.Now,
		loc:      cfg.Location,
		timeout:  cfg.StorageTimeout,
	}
}

// RegisterCompany creates a company with its initial device roster.
func (s *Service) RegisterCompany(ctx context.Context, actor Actor, in RegisterCompanyInput) (Company, error) {
	if err := requireActor(actor); err != nil {
		return Company{}, err
	}
	in.normalize()
	if err := validateStruct(in); err != nil {
		return Company{}, err
	}
	fps, err := RegisterFingerprints(in.Fingerprints, s.now())
	if err != nil {
		return Company{}, err
	}
	company := Company{
		CompanyID:    in.CompanyID,
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		Address:      in.Address,
		DeployKey:    in.DeployKey,
		Active:       true,
		Fingerprints: fps,
	}
	s.recorder.StampCreate(&company, actor)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.registry.Create(ctx, company)
	if err != nil {
		return Company{}, s.fail("register company", err)
	}

	s.record(ctx, actor, actionCreate, created.ID, map[string]any{
		"companyId":    created.CompanyID,
		"fingerprints": fingerprintValues(created.Fingerprints),
	})
	s.logger.Info("company registered",
		slog.String("id", created.ID.String()),
		slog.String("company_id", created.CompanyID),
		slog.Int("devices", len(created.Fingerprints)),
		slog.String("actor", actor.ID.String()),
	)
	return created, nil
}

// GetCompany returns one company.
func (s *Service) GetCompany(ctx context.Context, actor Actor, id uuid.UUID) (Company, error) {
	if err := requireActor(actor); err != nil {
		return Company{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	company, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return Company{}, s.fail("get company", err)
	}
	return company, nil
}

// ListCompanies returns every company, newest first, with UpdatedByName resolved when possible.
func (s *Service) ListCompanies(ctx context.Context, actor Actor) ([]Company, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	companies, err := s.registry.List(ctx)
	if err != nil {
		return nil, s.fail("list companies", err)
	}
	if companies == nil {
		companies = []Company{}
	}
	s.resolveNames(ctx, companies)
	return companies, nil
}

// UpdateCompany applies a partial edit. Fingerprint edits are merged by value
// into the stored roster under the registry's per-company lock.
func (s *Service) UpdateCompany(ctx context.Context, actor Actor, id uuid.UUID, in UpdateCompanyInput) (Company, error) {
	if err := requireActor(actor); err != nil {
		return Company{}, err
	}
	if err := in.check(); err != nil {
		return Company{}, err
	}
	edits, _ := in.Fingerprints.Get()

	var changed []string
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	updated, err := s.registry.Update(ctx, id, func(c *Company) error {
		changed = in.apply(c)
		if in.Fingerprints.IsSet() {
			merged, err := MergeFingerprints(c.Fingerprints, edits, s.now())
			if err != nil {
				return err
			}
			c.Fingerprints = merged
			changed = append(changed, "fingerprints")
		}
		s.recorder.StampUpdate(c, actor)
		return nil
	})
	if err != nil {
		return Company{}, s.fail("update company", err)
	}

	meta := map[string]any{"fields": changed}
	if len(edits) > 0 {
		values := make([]string, len(edits))
		for i, e := range edits {
			values[i] = e.Value
		}
		meta["fingerprints"] = values
	}
	s.record(ctx, actor, actionUpdate, updated.ID, meta)
	s.logger.Info("company updated",
		slog.String("id", updated.ID.String()),
		slog.Any("fields", changed),
		slog.String("actor", actor.ID.String()),
	)
	return updated, nil
}

// History returns the audit trail of one company.
func (s *Service) History(ctx context.Context, actor Actor, id uuid.UUID) ([]audit.Entry, error) {
	if _, err := s.GetCompany(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return []audit.Entry{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	entries, err := s.trail.History(ctx, auditEntity, id.String(), historyLimit)
	if err != nil {
		return nil, s.fail("company history", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

// VerifyLicense decides whether the device may run. The error is non-nil only
// for infrastructure failures, and is then always ErrInternal.
func (s *Service) VerifyLicense(ctx context.Context, companyID, deployKey, fingerprint string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var company *Company
	found, err := s.registry.FindByBusinessKey(ctx, companyID, deployKey)
	switch {
	case err == nil:
		company = &found
	case errors.Is(err, ErrNotFound):
	default:
		s.metrics.observeError()
		return Verdict{}, s.fail("verify license", err)
	}

	verdict := Decide(company, fingerprint, s.now(), s.loc)
	s.metrics.observe(verdict)
	if !verdict.Authorized {
		s.logger.Info("license denied",
			slog.String("company_id", companyID),
			slog.String("fingerprint", fingerprint),
			slog.String("reason", string(verdict.Reason)),
		)
	}
	return verdict, nil
}

// fail passes domain errors through and collapses everything else into ErrInternal.
func (s *Service) fail(op string, err error) error {
	var (
		ve *ValidationError
		ce *ConflictError
	)
	if errors.Is(err, ErrNotFound) || errors.As(err, &ve) || errors.As(err, &ce) {
		return err
	}
	s.logger.Error(op+" failed", slog.Any("error", err))
	return ErrInternal
}

func (s *Service) record(ctx context.Context, actor Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.trail == nil {
		return
	}
	entry := audit.Entry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	}
	if err := s.trail.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) resolveNames(ctx context.Context, companies []Company) {
	if s.names == nil || len(companies) == 0 {
		return
	}
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, c := range companies {
		if c.UpdatedBy == uuid.Nil {
			continue
		}
		if _, ok := seen[c.UpdatedBy]; ok {
			continue
		}
		seen[c.UpdatedBy] = struct{}{}
		ids = append(ids, c.UpdatedBy)
	}
	if len(ids) == 0 {
		return
	}
	names, err := s.names.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("resolve staff names", slog.Any("error", err))
		return
	}
	for i := range companies {
		companies[i].UpdatedByName = names[companies[i].UpdatedBy]
	}
}

func requireActor(actor Actor) error {
	if actor.ID == uuid.Nil {
		return ErrUnauthenticated
	}
	return nil
}

func fingerprintValues(fps []Fingerprint) []string {
	values := make([]string, len(fps))
	for i, fp := range fps {
		values[i] = fp.Value
	}
	return values
}
