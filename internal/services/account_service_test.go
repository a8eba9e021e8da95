package services

import (
	"testing"

	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
	"ahorrito/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(db)
	user := testutil.CreateTestUser(t, db)

	account, err := svc.CreateAccount(user.ID, "Checking", models.AccountTypeBank, "ars", "day to day", 1500)
	testutil.AssertNoError(t, err)

	if account.Currency != "ARS" {
		t.Errorf("expected uppercased currency, got %s", account.Currency)
	}
	if account.Balance != 1500 {
		t.Errorf("expected initial balance 1500, got %v", account.Balance)
	}
	if !account.IsActive {
		t.Error("expected new account active")
	}
}

func TestGetAccountByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(db)
	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccount(t, db, owner.ID, 100)

	found, err := svc.GetAccountByID(owner.ID, account.ID)
	testutil.AssertNoError(t, err)
	if found.ID != account.ID {
		t.Errorf("expected account %d, got %d", account.ID, found.ID)
	}

	_, err = svc.GetAccountByID(other.ID, account.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestGetUserAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(db)
	user := testutil.CreateTestUser(t, db)

	first := testutil.CreateTestAccount(t, db, user.ID, 10)
	testutil.CreateTestAccount(t, db, user.ID, 20)

	inactive := testutil.CreateTestAccount(t, db, user.ID, 30)
	db.Model(inactive).Update("is_active", false)

	page, err := svc.GetUserAccounts(user.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 {
		t.Errorf("expected 2 active accounts, got %d", page.TotalItems)
	}
	if page.Data[0].ID != first.ID {
		t.Errorf("expected oldest account first, got %d", page.Data[0].ID)
	}
}

func TestUpdateAccountBalance(t *testing.T) {
	t.Run("income_and_saving_credit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 100)

		err := svc.UpdateAccountBalance(db, account, models.TransactionTypeIncome, 40)
		testutil.AssertNoError(t, err)
		err = svc.UpdateAccountBalance(db, account, models.TransactionTypeSaving, 10)
		testutil.AssertNoError(t, err)

		var fresh models.Account
		db.First(&fresh, account.ID)
		if fresh.Balance != 150 {
			t.Errorf("expected balance 150, got %v", fresh.Balance)
		}
	})

	t.Run("expense_guards_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 50)

		err := svc.UpdateAccountBalance(db, account, models.TransactionTypeExpense, 60)
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")
	})

	t.Run("unknown_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID, 50)

		err := svc.UpdateAccountBalance(db, account, models.TransactionType("transfer"), 10)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
