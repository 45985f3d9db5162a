// Package partnertest provides an in-process fake of the partner backend for
// tests that exercise the partner client end to end.
package partnertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"loangenius/internal/common/partner"
)

const (
	PartnerJWT = "partner-jwt"
	AuthToken  = "auth-token-123"
	Challenge  = "epoch-1700000000"
	ValidOTP   = "123456"
)

// Reply is a canned response. A zero Status means 200.
type Reply struct {
	Status int
	Body   interface{}
	Delay  time.Duration
}

// Recorded is one request seen by the server.
type Recorded struct {
	Method  string
	Path    string
	Header  http.Header
	Payload map[string]interface{}
}

// Server is a scriptable partner backend. Zero-value fields produce the happy path.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	counts         map[string]int
	requests       []Recorded
	createReplies  []Reply
	submitReplies  []Reply
	tokenReplies   []Reply
	user           map[string]interface{}
	companies      []partner.Company
	pincodes       map[string][]partner.PincodeRecord
	lookupFailures bool
}

func NewServer() *Server {
	s := &Server{
		counts:   map[string]int{},
		pincodes: map[string][]partner.PincodeRecord{},
		user:     map[string]interface{}{"name": "Test User"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /partner/token", s.handleToken)
	mux.HandleFunc("POST /partner/auth", s.handleAuth)
	mux.HandleFunc("POST /partner/loangenius/lead-details", s.handleLead)
	mux.HandleFunc("GET /sp/api/companies/{query}", s.handleCompanies)
	mux.HandleFunc("GET /sp/api/pincode/{code}", s.handlePincode)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		s.record("health", r, nil)
		w.WriteHeader(http.StatusOK)
	})

	s.Server = httptest.NewServer(mux)
	return s
}

// Options returns client options pointing both base URLs at the server.
func (s *Server) Options() partner.Options {
	return partner.Options{
		UATBaseURL:      s.URL,
		ExternalBaseURL: s.URL,
		APIKey:          "test",
		Timeout:         5 * time.Second,
	}
}

// Client builds a partner client against the server.
func (s *Server) Client() *partner.Client {
	return partner.NewClient(s.Options())
}

func (s *Server) QueueToken(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenReplies = append(s.tokenReplies, replies...)
}

func (s *Server) QueueCreateLead(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createReplies = append(s.createReplies, replies...)
}

func (s *Server) QueueSubmit(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitReplies = append(s.submitReplies, replies...)
}

func (s *Server) SetUser(user map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *Server) SetCompanies(companies ...partner.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = companies
}

func (s *Server) SetPincode(code string, records ...partner.PincodeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pincodes[code] = records
}

// FailLookups makes company and pincode endpoints return 500.
func (s *Server) FailLookups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupFailures = true
}

// Count returns how many times an endpoint was hit: token, send-otp,
// verify-otp, create-lead, submit-lead, companies, pincode, health.
func (s *Server) Count(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[endpoint]
}

// Requests returns the recorded requests for endpoint.
func (s *Server) Requests(endpoint string) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recorded
	for _, r := range s.requests {
		if r.Path == endpoint {
			out = append(out, r)
		}
	}
	return out
}

// SuccessfulSubmit is a lead-details reply carrying one eligible and one
// ineligible offer.
func SuccessfulSubmit() Reply {
	return Reply{Body: success(map[string]interface{}{
		"success": 1,
		"message": "Lead details updated",
		"isEligible": []map[string]interface{}{{
			"lender_id": 1, "offer_id": 11, "lender_name": "Alpha Finance",
			"lender_category": "NBFC", "minimum_interest_rate": "10.5",
			"loan_offered_upto": "500000", "loan_tags": []map[string]interface{}{{"id": 1, "name": "Instant Approval"}},
		}},
		"inEligibleOffers": []map[string]interface{}{{
			"lender_id": 2, "offer_id": 22, "lender_name": "Beta Bank",
			"lender_category": "Bank", "salaryRejected": true,
		}},
	})}
}

func success(data interface{}) map[string]interface{} {
	return map[string]interface{}{"status": "success", "message": "ok", "data": data}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.record("token", r, decode(r))
	if reply, ok := s.pop(&s.tokenReplies); ok {
		s.write(w, reply)
		return
	}
	s.write(w, Reply{Body: success(map[string]interface{}{
		"jwttoken":  PartnerJWT,
		"expiresAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	payload := decode(r)
	if r.Header.Get("partner-token") != PartnerJWT {
		s.record("auth-rejected", r, payload)
		s.write(w, Reply{Status: http.StatusUnauthorized, Body: map[string]string{"message": "bad partner token"}})
		return
	}

	otp, verifying := payload["otp"]
	if !verifying {
		s.record("send-otp", r, payload)
		s.write(w, Reply{Body: success(map[string]interface{}{"token": Challenge, "newUser": true})})
		return
	}

	s.record("verify-otp", r, payload)
	if r.Header.Get("x-epoch") != Challenge || otp != ValidOTP {
		s.write(w, Reply{Body: map[string]interface{}{"status": "error", "message": "Invalid OTP"}})
		return
	}

	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	s.write(w, Reply{Body: success(map[string]interface{}{
		"token":   AuthToken,
		"partner": "loangenius",
		"user_data": map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"user_data": user},
		},
	})})
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	payload, _ := body["payload"].(map[string]interface{})

	if _, ok := payload["lead_id"]; !ok {
		s.record("create-lead", r, body)
		if reply, ok := s.pop(&s.createReplies); ok {
			s.write(w, reply)
			return
		}
		s.write(w, Reply{Body: success(map[string]interface{}{
			"success": 1, "lead_id": "LEAD-1", "exit_id": "EXIT-1", "vendor": "bankkaro",
		})})
		return
	}

	s.record("submit-lead", r, body)
	if reply, ok := s.pop(&s.submitReplies); ok {
		s.write(w, reply)
		return
	}
	s.write(w, SuccessfulSubmit())
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	s.record("companies", r, nil)
	s.mu.Lock()
	failing := s.lookupFailures
	query := strings.ToLower(r.PathValue("query"))
	var matches []partner.Company
	for _, c := range s.companies {
		if strings.Contains(strings.ToLower(c.Name), query) {
			matches = append(matches, c)
		}
	}
	s.mu.Unlock()

	if failing {
		s.write(w, Reply{Status: http.StatusInternalServerError, Body: map[string]string{"message": "boom"}})
		return
	}
	if matches == nil {
		matches = []partner.Company{}
	}
	s.write(w, Reply{Body: success(matches)})
}

func (s *Server) handlePincode(w http.ResponseWriter, r *http.Request) {
	s.record("pincode", r, nil)
	s.mu.Lock()
	failing := s.lookupFailures
	records := s.pincodes[r.PathValue("code")]
	s.mu.Unlock()

	if failing {
		s.write(w, Reply{Status: http.StatusInternalServerError, Body: map[string]string{"message": "boom"}})
		return
	}
	if records == nil {
		records = []partner.PincodeRecord{}
	}
	s.write(w, Reply{Body: success(records)})
}

func (s *Server) pop(queue *[]Reply) (Reply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(*queue) == 0 {
		return Reply{}, false
	}
	reply := (*queue)[0]
	*queue = (*queue)[1:]
	return reply, true
}

func (s *Server) record(endpoint string, r *http.Request, payload map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[endpoint]++
	s.requests = append(s.requests, Recorded{
		Method:  r.Method,
		Path:    endpoint,
		Header:  r.Header.Clone(),
		Payload: payload,
	})
}

func (s *Server) write(w http.ResponseWriter, reply Reply) {
	if reply.Delay > 0 {
		time.Sleep(reply.Delay)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Body != nil {
		_ = json.NewEncoder(w).Encode(reply.Body)
	}
}

func decode(r *http.Request) map[string]interface{} {
	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return payload
}
