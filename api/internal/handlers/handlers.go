package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"white-traffic-console/api/internal/storage"
	"white-traffic-console/internal/model"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Credentials configures the sandbox's static bearer auth.
type Credentials struct {
	Token    string
	Username string
	Password string
}

type Handlers struct {
	store  *storage.Storage
	creds  Credentials
	logger *logrus.Logger
}

func NewHandlers(store *storage.Storage, creds Credentials, logger *logrus.Logger) *Handlers {
	if creds.Username != "" && creds.Password != "" {
		store.AddUser(creds.Username, creds.Password)
	}
	return &Handlers{
		store:  store,
		creds:  creds,
		logger: logger,
	}
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.store.CheckUser(req.Username, req.Password) {
		writeJSON(w, http.StatusUnauthorized, response{Message: "Invalid username or password"})
		return
	}
	h.logger.Infof("User %s logged in", req.Username)
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    model.User{Username: req.Username, Token: h.creds.Token, Role: "admin"},
		Message: "Login successful",
	})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Username and password are required"})
		return
	}
	if !h.store.AddUser(req.Username, req.Password) {
		writeJSON(w, http.StatusConflict, response{Message: "Username already exists"})
		return
	}
	h.logger.Infof("Registered user %s", req.Username)
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    model.User{Username: req.Username, Token: h.creds.Token, Role: "operator"},
		Message: "Registration successful",
	})
}

// Rules handlers

func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.store.GetRules())
}

func (h *Handlers) GetRulesStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.store.GetRulesStats())
}

func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var in model.NewRuleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := checkRule(in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	rule := h.store.AddRule(in)
	h.logger.Infof("Created rule %s (%s)", rule.ID, rule.Name)
	writeData(w, http.StatusCreated, rule)
}

func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])

	var updates model.Rule
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := checkRule(updates.Input()); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rule, ok := h.store.UpdateRule(id, updates)
	if !ok {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}
	writeData(w, http.StatusOK, rule)
}

func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	if !h.store.DeleteRule(id) {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}
	h.logger.Infof("Deleted rule %s", id)
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Rule deleted"})
}

// TestRule reports what the backend would match on. Nothing is evaluated.
func (h *Handlers) TestRule(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	rule := h.store.GetRuleByID(id)
	if rule == nil {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}

	var conditions map[string]interface{}
	if err := json.Unmarshal([]byte(rule.Conditions), &conditions); err != nil {
		writeJSON(w, http.StatusOK, response{
			Success: true,
			Data:    model.TestOutcome{RuleID: id},
			Message: fmt.Sprintf("Rule %q parsed, conditions are not a key/value object", rule.Name),
		})
		return
	}
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := fmt.Sprintf("Rule %q is valid, matching on: %s", rule.Name, strings.Join(keys, ", "))
	if len(keys) == 0 {
		msg = fmt.Sprintf("Rule %q is valid but has no conditions", rule.Name)
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    model.TestOutcome{RuleID: id, Message: msg},
		Message: msg,
	})
}

func checkRule(in model.NewRuleInput) string {
	if strings.TrimSpace(in.Name) == "" {
		return "Rule name is required"
	}
	if strings.TrimSpace(in.Conditions) == "" {
		return "Filter conditions are required"
	}
	if !json.Valid([]byte(in.Conditions)) {
		return "Filter conditions must be valid JSON"
	}
	return ""
}

// Alerts handlers

func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	showResolved := false
	if v := r.URL.Query().Get("showResolved"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid showResolved value")
			return
		}
		showResolved = parsed
	}
	writeData(w, http.StatusOK, h.store.GetAlerts(showResolved))
}

func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	alert := h.store.GetAlertByID(id)
	if alert == nil {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeData(w, http.StatusOK, alert)
}

func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	if !h.store.ResolveAlert(id) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	h.logger.Infof("Resolved alert %s", id)
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Alert resolved"})
}

func (h *Handlers) DismissAlert(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	if !h.store.DismissAlert(id) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	h.logger.Infof("Dismissed alert %s", id)
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Alert dismissed"})
}

// Traffic handlers

func (h *Handlers) GetTrafficAnalysis(w http.ResponseWriter, r *http.Request) {
	rng := model.DefaultRange
	if v := r.URL.Query().Get("range"); v != "" {
		parsed, err := model.ParseTimeRange(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = parsed
	}
	writeData(w, http.StatusOK, h.store.Analyze(rng))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Error: message})
}
