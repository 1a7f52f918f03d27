package domain

// AuditCode names a security-relevant outcome. The set is fixed; sinks and
// dashboards key on these values.
type AuditCode string

const (
	AuditAuthenticationSucceeded AuditCode = "authn.succeeded"
	AuditInvalidCredentials      AuditCode = "authn.invalid_credentials"
	AuditAccountLocked           AuditCode = "authn.account_locked"
	AuditAccountLockedOut        AuditCode = "authn.account_locked_out"
	AuditAccountSuspended        AuditCode = "authn.account_suspended"
	AuditNotVerified             AuditCode = "authn.not_verified"
	AuditMfaRequired             AuditCode = "authn.mfa_required"

	AuditRegistrationInitiated AuditCode = "registration.initiated"
	AuditRegistrationDuplicate AuditCode = "registration.duplicate"
	AuditRegistrationVerified  AuditCode = "registration.verified"

	AuditPasswordResetInitiated AuditCode = "password_reset.initiated"
	AuditPasswordResetCompleted AuditCode = "password_reset.completed"

	AuditMfaEnabledChanged    AuditCode = "mfa.enabled_changed"
	AuditMfaAssociated        AuditCode = "mfa.associated"
	AuditMfaConfirmed         AuditCode = "mfa.confirmed"
	AuditMfaChallenged        AuditCode = "mfa.challenged"
	AuditMfaVerified          AuditCode = "mfa.verified"
	AuditMfaVerifyFailed      AuditCode = "mfa.verify_failed"
	AuditMfaDisassociated     AuditCode = "mfa.disassociated"
	AuditRecoveryCodeConsumed AuditCode = "mfa.recovery_code_consumed"
	AuditCredentialSuspended  AuditCode = "credential.suspended"
	AuditCredentialReinstated AuditCode = "credential.reinstated"

	AuditClientCreated         AuditCode = "client.created"
	AuditClientUpdated         AuditCode = "client.updated"
	AuditClientDeleted         AuditCode = "client.deleted"
	AuditClientSecretGenerated AuditCode = "client.secret_generated"
	AuditConsentChanged        AuditCode = "consent.changed"
	AuditConsentRevoked        AuditCode = "consent.revoked"

	AuditAuthorizationCodeIssued    AuditCode = "oidc.code_issued"
	AuditAuthorizationCodeExchanged AuditCode = "oidc.code_exchanged"
	AuditTokensIssued               AuditCode = "tokens.issued"
	AuditTokensRefreshed            AuditCode = "tokens.refreshed"
	AuditTokensRevoked              AuditCode = "tokens.revoked"
)
