package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/notemarket/backend/api/responses"
	studyaidssvc "github.com/notemarket/backend/internal/studyaids"
	pkgerrors "github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/logger"
)

// StudyAidGenerate produces a summary, quiz or flashcard deck for a note the
// caller is entitled to.
func StudyAidGenerate(svc studyaidssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := pathUUID(r, "noteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind := studyaidssvc.Kind(strings.TrimSpace(chi.URLParam(r, "kind")))
		if !kind.IsValid() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown study aid kind").WithDetails(map[string]any{"kind": string(kind)}))
			return
		}

		aid, err := svc.Generate(r.Context(), studyaidssvc.GenerateInput{
			UserID: uid,
			NoteID: noteID,
			Kind:   kind,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, aid)
	}
}
