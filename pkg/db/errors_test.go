package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolationPgx(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_cart_lines_cart_product",
	})

	if !IsUniqueViolation(err, "ux_cart_lines_cart_product") {
		t.Fatal("expected match on constraint")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected match without constraint filter")
	}
	if IsUniqueViolation(err, "ux_other") {
		t.Fatal("expected mismatch on a different constraint")
	}
}

func TestIsUniqueViolationPq(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "ux_carts_user_active"}

	if !IsUniqueViolation(err, "ux_carts_user_active") {
		t.Fatal("expected match on constraint")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}, "") {
		t.Fatal("foreign key violation must not match")
	}
}

func TestIsUniqueViolationFallbackMessage(t *testing.T) {
	err := errors.New(`duplicate key value violates unique constraint "ux_cart_lines_cart_product"`)

	if !IsUniqueViolation(err, "ux_cart_lines_cart_product") {
		t.Fatal("expected message fallback to match the constraint")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: cart_lines.cart_id"), "") {
		t.Fatal("expected sqlite message to match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error must not match")
	}
}
