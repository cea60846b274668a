package httpapi

import (
	"net/http"

	"github.com/elimusphere/sphereauth"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.engine.ListStudents(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if students == nil {
		students = []sphereauth.StudentRecord{}
	}

	ok(w, "success", students)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req sphereauth.StudentUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	record, err := s.engine.UpdateStudentRecord(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	ok(w, "success", record)
}
