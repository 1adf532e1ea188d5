package domain

// IdentityKind discriminates the two identity channels. Classification
// happens once at the boundary; downstream code switches on Kind instead of
// re-inspecting the string.
type IdentityKind string

const (
	IdentityEmail IdentityKind = "email"
	IdentityPhone IdentityKind = "phone"
)

// Identity is a normalized email address or Iranian mobile number.
// Emails are lower-cased; phones are in canonical 09XXXXXXXXX form.
type Identity struct {
	Value string
	Kind  IdentityKind
}

func (i Identity) IsEmail() bool { return i.Kind == IdentityEmail }
func (i Identity) IsPhone() bool { return i.Kind == IdentityPhone }

func (i Identity) String() string { return i.Value }

// Purpose is the intent context driving which side effects a verification
// triggers. It is resolved fresh on every request and never stored.
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposeRegister      Purpose = "register"
	PurposeResetPassword Purpose = "reset_password"
)

// DeliveryChannel reports how a code or link was dispatched.
type DeliveryChannel string

const (
	ChannelEmail DeliveryChannel = "email"
	ChannelSMS   DeliveryChannel = "sms"
)
