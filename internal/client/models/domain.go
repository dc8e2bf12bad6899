package models

// User is the authenticated account as the backend reports it.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Profile is the user's tenant-scoped profile.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	AvatarURL   string      `json:"avatarUrl,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// Preferences are the user's per-tenant settings.
type Preferences struct {
	Language             string `json:"language"`
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// ProfileUpdate is a partial profile edit; nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// TenantConfig is the white-label branding and contact configuration.
type TenantConfig struct {
	TenantID     string `json:"tenantId"`
	Name         string `json:"name"`
	LogoURL      string `json:"logoUrl"`
	PrimaryColor string `json:"primaryColor"`
	SupportEmail string `json:"supportEmail"`
}

// TenantStatus is the tenant's operational state.
type TenantStatus struct {
	Operational bool   `json:"operational"`
	Message     string `json:"message,omitempty"`
}

// FeatureFlags maps feature names to their enabled state for the tenant.
type FeatureFlags map[string]bool
