package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	purchasesvc "github.com/notemarket/backend/internal/purchases"
	"github.com/notemarket/backend/pkg/db/models"
	pkgerrors "github.com/notemarket/backend/pkg/errors"
)

type testPurchasesService struct {
	purchaseFn func(ctx context.Context, buyerID, noteID uuid.UUID) (*purchasesvc.PurchaseResult, error)
	listFn     func(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
}

func (s *testPurchasesService) PurchaseNote(ctx context.Context, buyerID, noteID uuid.UUID) (*purchasesvc.PurchaseResult, error) {
	if s.purchaseFn != nil {
		return s.purchaseFn(ctx, buyerID, noteID)
	}
	return &purchasesvc.PurchaseResult{Purchase: &models.Purchase{}}, nil
}

func (s *testPurchasesService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *testPurchasesService) OpenPurchase(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error) {
	return &models.Purchase{}, nil
}

func (s *testPurchasesService) AddAnnotation(ctx context.Context, input purchasesvc.AnnotationInput) (*models.Purchase, error) {
	return &models.Purchase{}, nil
}

func (s *testPurchasesService) AddComment(ctx context.Context, input purchasesvc.CommentInput) (*models.Purchase, error) {
	return &models.Purchase{}, nil
}

func TestPurchaseNoteSuccess(t *testing.T) {
	buyerID := uuid.New()
	noteID := uuid.New()
	svc := &testPurchasesService{
		purchaseFn: func(ctx context.Context, bid, nid uuid.UUID) (*purchasesvc.PurchaseResult, error) {
			if bid != buyerID || nid != noteID {
				t.Fatalf("unexpected ids %s %s", bid, nid)
			}
			return &purchasesvc.PurchaseResult{
				Purchase:        &models.Purchase{ID: uuid.New()},
				PricePaidCents:  999,
				NewBalanceCents: 1,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/"+noteID.String()+"/purchase", nil)
	req = asUser(req, buyerID.String(), "USER")
	req = addRouteParam(req, "noteId", noteID.String())
	resp := httptest.NewRecorder()
	PurchaseNote(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			PricePaidCents  int64 `json:"price_paid_cents"`
			NewBalanceCents int64 `json:"new_balance_cents"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.PricePaidCents != 999 || envelope.Data.NewBalanceCents != 1 {
		t.Fatalf("payload = %+v", envelope.Data)
	}
}

func TestPurchaseNoteInsufficientFunds(t *testing.T) {
	svc := &testPurchasesService{
		purchaseFn: func(ctx context.Context, bid, nid uuid.UUID) (*purchasesvc.PurchaseResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
				WithDetails(map[string]any{"required_cents": 999, "balance_cents": 100})
		},
	}

	noteID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/"+noteID+"/purchase", nil)
	req = asUser(req, uuid.NewString(), "USER")
	req = addRouteParam(req, "noteId", noteID)
	resp := httptest.NewRecorder()
	PurchaseNote(svc, testLogger())(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.Code)
	}
}

func TestPurchaseNoteInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/not-a-uuid/purchase", nil)
	req = asUser(req, uuid.NewString(), "USER")
	req = addRouteParam(req, "noteId", "not-a-uuid")
	resp := httptest.NewRecorder()
	PurchaseNote(&testPurchasesService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestPurchaseDuplicateConflict(t *testing.T) {
	svc := &testPurchasesService{
		purchaseFn: func(ctx context.Context, bid, nid uuid.UUID) (*purchasesvc.PurchaseResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "note already purchased")
		},
	}
	noteID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/"+noteID+"/purchase", nil)
	req = asUser(req, uuid.NewString(), "USER")
	req = addRouteParam(req, "noteId", noteID)
	resp := httptest.NewRecorder()
	PurchaseNote(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.Code)
	}
}
