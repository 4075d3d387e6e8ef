package actions

import (
	"context"
	"fmt"

	"github.com/wardlabs/ward/connectors"
	"github.com/wardlabs/ward/storage"
	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// Built-in action types.
const (
	TypeNotify   = "notify"
	TypeEscalate = "escalate"
	TypeRevoke   = "revoke"
	TypeBlock    = "block"
	TypeApprove  = "approve"
)

// configString reads a string config value with a fallback.
func configString(config map[string]any, key, fallback string) string {
	if config == nil {
		return fallback
	}
	if s, ok := config[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// NotifyHandler sends a notification to a configured channel. Delivery is an
// external concern; this handler logs the structured notification and
// reports the channel it went to.
type NotifyHandler struct {
	logger *telemetry.Logger
}

// NewNotifyHandler creates the notify handler.
func NewNotifyHandler() *NotifyHandler {
	return &NotifyHandler{logger: telemetry.NewLogger("action-notify")}
}

func (h *NotifyHandler) Type() string { return TypeNotify }

func (h *NotifyHandler) Execute(ctx context.Context, config map[string]any, actx Context) (Result, error) {
	channel := configString(config, "channel", "default")
	message := configString(config, "message", fmt.Sprintf("policy %s triggered by %s", actx.PolicyName, actx.Event.Topic))

	h.logger.WithContext(ctx).Info().
		Str("channel", channel).
		Str("tenant_id", actx.TenantID).
		Str("policy_id", actx.PolicyID).
		Str("message", message).
		Msg("notification sent")

	return Result{
		Success: true,
		Data:    map[string]any{"channel": channel, "message": message},
	}, nil
}

// EscalateHandler raises the event to a named escalation target (a team or
// an on-call rotation).
type EscalateHandler struct {
	logger *telemetry.Logger
}

// NewEscalateHandler creates the escalate handler.
func NewEscalateHandler() *EscalateHandler {
	return &EscalateHandler{logger: telemetry.NewLogger("action-escalate")}
}

func (h *EscalateHandler) Type() string { return TypeEscalate }

func (h *EscalateHandler) Execute(ctx context.Context, config map[string]any, actx Context) (Result, error) {
	target := configString(config, "target", "security-team")
	severity := configString(config, "severity", "high")

	h.logger.WithContext(ctx).Warn().
		Str("target", target).
		Str("severity", severity).
		Str("tenant_id", actx.TenantID).
		Str("topic", string(actx.Event.Topic)).
		Msg("event escalated")

	return Result{
		Success: true,
		Data:    map[string]any{"target": target, "severity": severity},
	}, nil
}

// RevokeHandler removes a user's access to an app via the revocation
// collaborator. User and app come from config, falling back to the event
// payload.
type RevokeHandler struct {
	revoker connectors.Revoker
	logger  *telemetry.Logger
}

// NewRevokeHandler creates the revoke handler.
func NewRevokeHandler(revoker connectors.Revoker) *RevokeHandler {
	return &RevokeHandler{
		revoker: revoker,
		logger:  telemetry.NewLogger("action-revoke"),
	}
}

func (h *RevokeHandler) Type() string { return TypeRevoke }

func (h *RevokeHandler) Execute(ctx context.Context, config map[string]any, actx Context) (Result, error) {
	userID := configString(config, "userId", actx.Event.PayloadString("userId"))
	appID := configString(config, "appId", actx.Event.PayloadString("appId"))

	if userID == "" || appID == "" {
		return Result{}, fmt.Errorf("revoke action requires userId and appId")
	}

	if err := h.revoker.RevokeUserAppAccess(ctx, userID, appID, actx.TenantID); err != nil {
		return Result{}, fmt.Errorf("revocation failed for user %s app %s: %w", userID, appID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("user_id", userID).
		Str("app_id", appID).
		Str("tenant_id", actx.TenantID).
		Msg("access revoked")

	return Result{
		Success: true,
		Data:    map[string]any{"userId": userID, "appId": appID},
	}, nil
}

// BlockHandler marks a catalog entry as denied so subsequent discoveries of
// the app classify as blocked.
type BlockHandler struct {
	store  *storage.Store
	logger *telemetry.Logger
}

// NewBlockHandler creates the block handler.
func NewBlockHandler(store *storage.Store) *BlockHandler {
	return &BlockHandler{
		store:  store,
		logger: telemetry.NewLogger("action-block"),
	}
}

func (h *BlockHandler) Type() string { return TypeBlock }

func (h *BlockHandler) Execute(ctx context.Context, config map[string]any, actx Context) (Result, error) {
	appID := configString(config, "appId", actx.Event.PayloadString("appId"))
	if appID == "" {
		return Result{}, fmt.Errorf("block action requires appId")
	}

	app, err := h.store.GetApp(actx.TenantID, appID)
	if err != nil {
		return Result{}, fmt.Errorf("block action: app %s: %w", appID, err)
	}

	app.ApprovalStatus = types.ApprovalDenied
	if err := h.store.SaveApp(app); err != nil {
		return Result{}, fmt.Errorf("block action: save app %s: %w", appID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("app_id", appID).
		Str("tenant_id", actx.TenantID).
		Msg("app blocked in catalog")

	return Result{
		Success: true,
		Data:    map[string]any{"appId": appID, "approvalStatus": string(types.ApprovalDenied)},
	}, nil
}

// ApproveHandler marks a catalog entry as approved, clearing it from the
// shadow-IT backlog.
type ApproveHandler struct {
	store  *storage.Store
	logger *telemetry.Logger
}

// NewApproveHandler creates the approve handler.
func NewApproveHandler(store *storage.Store) *ApproveHandler {
	return &ApproveHandler{
		store:  store,
		logger: telemetry.NewLogger("action-approve"),
	}
}

func (h *ApproveHandler) Type() string { return TypeApprove }

func (h *ApproveHandler) Execute(ctx context.Context, config map[string]any, actx Context) (Result, error) {
	appID := configString(config, "appId", actx.Event.PayloadString("appId"))
	if appID == "" {
		return Result{}, fmt.Errorf("approve action requires appId")
	}

	app, err := h.store.GetApp(actx.TenantID, appID)
	if err != nil {
		return Result{}, fmt.Errorf("approve action: app %s: %w", appID, err)
	}

	app.ApprovalStatus = types.ApprovalApproved
	if err := h.store.SaveApp(app); err != nil {
		return Result{}, fmt.Errorf("approve action: save app %s: %w", appID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("app_id", appID).
		Str("tenant_id", actx.TenantID).
		Msg("app approved in catalog")

	return Result{
		Success: true,
		Data:    map[string]any{"appId": appID, "approvalStatus": string(types.ApprovalApproved)},
	}, nil
}

// RegisterBuiltins wires the standard handler set into a registry.
func RegisterBuiltins(registry *Registry, store *storage.Store, revoker connectors.Revoker) {
	registry.Register(NewNotifyHandler())
	registry.Register(NewEscalateHandler())
	registry.Register(NewRevokeHandler(revoker))
	registry.Register(NewBlockHandler(store))
	registry.Register(NewApproveHandler(store))
}
