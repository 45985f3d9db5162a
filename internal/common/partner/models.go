package partner

import "encoding/json"

const (
	statusSuccess = "success"
	leadTypePL    = "PL"
)

// envelope is the common response wrapper of every partner endpoint.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenData struct {
	JWTToken  string          `json:"jwttoken"`
	ExpiresAt json.RawMessage `json:"expiresAt"`
}

// OTPChallenge is returned by SendOTP; Token must be echoed as x-epoch when
// verifying.
type OTPChallenge struct {
	Token   string `json:"token"`
	NewUser bool   `json:"newUser"`
}

type verifyData struct {
	Token    string `json:"token"`
	Partner  string `json:"partner"`
	UserData struct {
		Status string `json:"status"`
		Data   struct {
			UserData map[string]interface{} `json:"user_data"`
		} `json:"data"`
	} `json:"user_data"`
}

// Verification is the outcome of a successful OTP check.
type Verification struct {
	Token string
	User  map[string]interface{}
}

// LeadRef identifies a lead shell created in phase one.
type LeadRef struct {
	LeadID string `json:"lead_id"`
	ExitID string `json:"exit_id"`
	Vendor string `json:"vendor"`
}

// LeadDetails is the applicant payload of phase two.
type LeadDetails struct {
	LeadID                string `json:"lead_id"`
	ExitID                string `json:"exit_id"`
	Vendor                string `json:"vendor"`
	BREFlag               bool   `json:"breFlag"`
	GenerateExit          bool   `json:"generateExit"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Gender                string `json:"gender"`
	DOB                   string `json:"dob"`
	LoanAmountRequired    string `json:"loan_amount_required"`
	AlreadyExistingCredit bool   `json:"already_existing_credit"`
	EmploymentStatus      string `json:"employmentStatus"`
	InhandIncome          string `json:"inhandIncome"`
	SalaryReceivedIn      string `json:"salary_recieved_in"`
	CompanyName           string `json:"company_name"`
	Pincode               string `json:"pincode"`
	OfficePincode         string `json:"office_pincode"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	PAN                   string `json:"pan"`
	Email                 string `json:"email"`
	FetchCreditConsent    bool   `json:"fetch_credit_consent"`
	KnowYourCreditScore   bool   `json:"know_your_credit_score"`
	CreditRange           string `json:"credit_range"`
	TotalEMIs             int    `json:"total_emis"`
}

type leadRequest struct {
	LeadType string      `json:"leadType"`
	Payload  interface{} `json:"payload"`
}

type createLeadPayload struct {
	GenerateExit bool `json:"generateExit"`
}

// Company is one autocomplete suggestion.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"companyName"`
}

// PincodeRecord is one serviceable location for a pincode.
type PincodeRecord struct {
	ID       int64  `json:"id"`
	Pincode  string `json:"pincode"`
	City     string `json:"city"`
	State    string `json:"state"`
	Category string `json:"category"`
}
