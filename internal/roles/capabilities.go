package roles

// Capabilities is the set of actions a role allows on a form.
type Capabilities struct {
	Respond           bool `json:"respond"`
	ViewResponses     bool `json:"viewResponses"`
	EditQuestions     bool `json:"editQuestions"`
	EditSettings      bool `json:"editSettings"`
	DeleteResponses   bool `json:"deleteResponses"`
	DeleteForm        bool `json:"deleteForm"`
	ManagePermissions bool `json:"managePermissions"`
}

// Minimum role for each capability. The mapping is monotonic: a capability
// granted to a role is granted to every role above it.
const (
	minRespond           = Respondent
	minViewResponses     = Viewer
	minEditQuestions     = Editor
	minEditSettings      = Editor
	minDeleteResponses   = Admin
	minManagePermissions = Admin
	minDeleteForm        = Owner
)

// CapabilitiesFor returns the capabilities granted to r.
func CapabilitiesFor(r Role) Capabilities {
	return Capabilities{
		Respond:           r.AtLeast(minRespond),
		ViewResponses:     r.AtLeast(minViewResponses),
		EditQuestions:     r.AtLeast(minEditQuestions),
		EditSettings:      r.AtLeast(minEditSettings),
		DeleteResponses:   r.AtLeast(minDeleteResponses),
		DeleteForm:        r.AtLeast(minDeleteForm),
		ManagePermissions: r.AtLeast(minManagePermissions),
	}
}
