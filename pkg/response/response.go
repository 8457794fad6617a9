package response

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	Raw(w, status, APIResponse{
		Status: "success",
		Data:   data,
	})
}

func Error(w http.ResponseWriter, status int, msg string) {
	Raw(w, status, APIResponse{
		Status:  "error",
		Message: msg,
	})
}

// Raw writes body as-is for endpoints with a fixed external contract.
func Raw(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
