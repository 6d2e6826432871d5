package backend

// User mirrors the backend's user record
type User struct {
	ID               int64   `json:"id"`
	Email            string  `json:"email"`
	FirstName        *string `json:"first_name,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	MobileNumber     *string `json:"mobile_number,omitempty"`
	Company          *string `json:"company,omitempty"`
	JobTitle         *string `json:"job_title,omitempty"`
	Location         *string `json:"location,omitempty"`
	Bio              *string `json:"bio,omitempty"`
	LinkedInURL      *string `json:"linkedin_url,omitempty"`
	GitHubURL        *string `json:"github_url,omitempty"`
	WebsiteURL       *string `json:"website_url,omitempty"`
	ProfilePhoto     *string `json:"profile_photo,omitempty"`
	ProfilePhotoPath *string `json:"profile_photo_path,omitempty"`
	UpdatedAt        *string `json:"updated_at,omitempty"`
}

// DisplayName returns "First Last", falling back to the email
func (u *User) DisplayName() string {
	var name string
	if u.FirstName != nil {
		name = *u.FirstName
	}
	if u.LastName != nil && *u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// AuthResponse is the body returned by every auth endpoint
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
	// ProviderToken is set by backends that forward the provider's own access token
	ProviderToken string `json:"provider_token,omitempty"`
}

// Credentials are an email/password pair
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CodeExchange carries an authorization code to the backend
type CodeExchange struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// PasswordReset completes a reset started with ForgotPassword
type PasswordReset struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ProfileUpdate holds the editable profile fields. Nil fields are left unchanged.
// Length limits match the backend's columns.
type ProfileUpdate struct {
	FirstName    *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName     *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	MobileNumber *string `json:"mobile_number,omitempty" validate:"omitempty,max=20,phone"`
	Company      *string `json:"company,omitempty" validate:"omitempty,max=200"`
	JobTitle     *string `json:"job_title,omitempty" validate:"omitempty,max=200"`
	Location     *string `json:"location,omitempty" validate:"omitempty,max=200"`
	Bio          *string `json:"bio,omitempty"`
}

// Apply copies the set fields onto u
func (p ProfileUpdate) Apply(u *User) {
	set := func(dst **string, src *string) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.MobileNumber, p.MobileNumber)
	set(&u.Company, p.Company)
	set(&u.JobTitle, p.JobTitle)
	set(&u.Location, p.Location)
	set(&u.Bio, p.Bio)
}

// Empty reports whether no field is set
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.MobileNumber == nil &&
		p.Company == nil && p.JobTitle == nil && p.Location == nil && p.Bio == nil
}

// StatusResponse is returned by endpoints that only acknowledge
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
