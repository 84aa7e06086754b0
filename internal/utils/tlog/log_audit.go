package tlog

func AuditOAuthApp(action, userID, platform, appID string) {
	Audit.Info().
		Str("event", "oauth_app").
		Str("action", action).
		Str("user_id", userID).
		Str("platform", platform).
		Str("app_id", appID).
		Send()
}

func AuditConnect(userID, platform, method string) {
	Audit.Info().
		Str("event", "connect").
		Str("result", "success").
		Str("user_id", userID).
		Str("platform", platform).
		Str("method", method).
		Send()
}

func AuditConnectFailure(userID, platform, reason string) {
	Audit.Warn().
		Str("event", "connect").
		Str("result", "failure").
		Str("user_id", userID).
		Str("platform", platform).
		Str("reason", reason).
		Send()
}

func AuditDisconnect(userID, platform string, revoked bool) {
	Audit.Info().
		Str("event", "disconnect").
		Str("user_id", userID).
		Str("platform", platform).
		Bool("revoked", revoked).
		Send()
}

func AuditReconnect(userID, platform string) {
	Audit.Info().
		Str("event", "reconnect").
		Str("user_id", userID).
		Str("platform", platform).
		Send()
}

func AuditRevokeFailure(userID, platform, reason string) {
	Audit.Warn().
		Str("event", "revoke").
		Str("result", "failure").
		Str("user_id", userID).
		Str("platform", platform).
		Str("reason", reason).
		Send()
}

func AuditRefresh(userID, platform string) {
	Audit.Info().
		Str("event", "refresh").
		Str("user_id", userID).
		Str("platform", platform).
		Send()
}
