package operator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
)

// MinNicknameLen is counted in characters, not bytes.
const MinNicknameLen = 2

// Service handles operator registration and the seen-identity registry.
type Service struct {
	repo   repository.OperatorRepository
	access *access.AllowList
	logger *slog.Logger
}

func NewService(repo repository.OperatorRepository, acl *access.AllowList, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if acl == nil {
		acl = access.NewAllowList(nil, logger)
	}
	return &Service{repo: repo, access: acl, logger: logger}
}

// RegisterRequest represents operator registration parameters.
type RegisterRequest struct {
	TgID     int64
	Handle   string
	Nickname string
}

// ValidNickname reports whether s is long enough after trimming.
func ValidNickname(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= MinNicknameLen
}

// Register creates the operator or updates nickname/handle/registrar of an
// existing one. The acting identity from ctx is recorded as registrar.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*entity.Operator, error) {
	if err := s.access.Check(ctx, "register_operator"); err != nil {
		return nil, err
	}
	if req.TgID <= 0 {
		return nil, common.InvalidArgumentErrorf("tg_id must be positive")
	}
	nickname := strings.TrimSpace(req.Nickname)
	if !ValidNickname(nickname) {
		return nil, common.InvalidArgumentErrorf(constants.PromptNicknameTooShort)
	}

	op := entity.Operator{TgID: req.TgID, Nickname: &nickname}
	if h := strings.TrimPrefix(strings.TrimSpace(req.Handle), "@"); h != "" {
		op.Handle = &h
	}
	if actor, ok := common.ActorIDFromContext(ctx); ok {
		op.RegisteredBy = &actor
	}

	saved, err := s.repo.Upsert(ctx, op)
	if err != nil {
		return nil, common.WrapError(err, "upsert operator")
	}
	s.logger.Info("operator.registered", "tg_id", saved.TgID, "nickname", nickname, "registered_by", op.RegisteredBy)
	return saved, nil
}

func (s *Service) List(ctx context.Context) ([]entity.Operator, error) {
	if err := s.access.Check(ctx, "list_operators"); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Remove(ctx context.Context, tgID int64) error {
	if err := s.access.Check(ctx, "remove_operator"); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, tgID)
	if err != nil {
		return common.WrapError(err, "delete operator")
	}
	if !ok {
		return common.NotFoundError(constants.MsgOperatorNotFound)
	}
	s.logger.Info("operator.removed", "tg_id", tgID)
	return nil
}

// Lookup returns the registered operator for tgID, or nil when there is none.
func (s *Service) Lookup(ctx context.Context, tgID int64) (*entity.Operator, error) {
	op, err := s.repo.GetByTgID(ctx, tgID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return op, err
}

// RecordSeen remembers that tgID interacted with the bot under handle.
func (s *Service) RecordSeen(ctx context.Context, tgID int64, handle string) error {
	if tgID <= 0 {
		return nil
	}
	return s.repo.RecordSeen(ctx, tgID, handle)
}

// ResolveHandle maps @handle to a previously seen identity.
func (s *Service) ResolveHandle(ctx context.Context, handle string) (int64, bool, error) {
	return s.repo.ResolveHandle(ctx, handle)
}
