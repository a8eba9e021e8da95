package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
)

// accountService implements AccountServicer backed by the database.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a money source for the user.
func (s *accountService) CreateAccount(
	userID uint,
	name string,
	accountType models.AccountType,
	currency, description string,
	initialBalance float64,
) (*models.Account, error) {
	account := models.Account{
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Type:        accountType,
		Description: description,
		Balance:     initialBalance,
		Currency:    strings.ToUpper(strings.TrimSpace(currency)),
		IsActive:    true,
	}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetUserAccounts lists the user's active accounts.
func (s *accountService) GetUserAccounts(
	userID uint,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.Account], error) {
	query := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC")
	response, err := pagination.Paginate[models.Account](query, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return response, nil
}

// GetAccountByID fetches one of the user's accounts; ownership is enforced
// in the query, not after.
func (s *accountService) GetAccountByID(userID, accountID uint) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccountBalance applies a transaction's effect to the account balance
// inside the caller's transaction. Income and saving add; expense subtracts
// and must not overdraw.
func (s *accountService) UpdateAccountBalance(
	tx *gorm.DB,
	account *models.Account,
	transactionType models.TransactionType,
	amount float64,
) error {
	switch transactionType {
	case models.TransactionTypeIncome, models.TransactionTypeSaving:
		account.Balance += amount
	case models.TransactionTypeExpense:
		if account.Balance < amount {
			return apperrors.ErrInsufficientBalance
		}
		account.Balance -= amount
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown transaction type")
	}

	if err := tx.Model(account).Update("balance", account.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
