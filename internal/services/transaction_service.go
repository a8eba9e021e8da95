package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "ahorrito/internal/errors"
	"ahorrito/internal/logger"
	"ahorrito/internal/models"
	"ahorrito/internal/pagination"
)

// transactionService records financial movements and keeps account and goal
// balances consistent with them.
type transactionService struct {
	db       *gorm.DB
	accounts AccountServicer
	currency CurrencyServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accounts AccountServicer, currency CurrencyServicer) TransactionServicer {
	return &transactionService{db: db, accounts: accounts, currency: currency}
}

// CreateTransaction records a movement on one of the user's accounts. The
// row insert, account balance update, and any goal contribution commit
// atomically. Saving-type transactions with a goal feed the goal's balance,
// converted to the goal's currency when they differ.
func (s *transactionService) CreateTransaction(
	userID, accountID uint,
	goalID *uint,
	transactionType models.TransactionType,
	amount float64,
	description string,
	date time.Time,
) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be positive")
	}

	account, err := s.accounts.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	var goal *models.Goal
	if goalID != nil {
		if transactionType != models.TransactionTypeSaving {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Only saving transactions can target a goal")
		}
		var g models.Goal
		if err := s.db.Where("id = ? AND user_id = ?", *goalID, userID).First(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrGoalNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if g.State != models.GoalStateActive {
			return nil, apperrors.ErrGoalNotOpen
		}
		goal = &g
	}

	if date.IsZero() {
		date = time.Now()
	}

	transaction := models.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		GoalID:      goalID,
		Type:        transactionType,
		Amount:      amount,
		Currency:    account.Currency,
		Description: description,
		Date:        date,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.accounts.UpdateAccountBalance(tx, account, transactionType, amount); err != nil {
			return err
		}
		if goal != nil {
			contribution := amount
			if account.Currency != goal.Currency {
				converted, err := s.currency.Convert(amount, account.Currency, goal.Currency)
				if err != nil {
					logger.Get().Warnw("currency conversion unavailable, using raw amount",
						"from", account.Currency, "to", goal.Currency, "error", err)
				} else {
					contribution = converted
				}
			}
			if err := tx.Model(goal).
				Update("balance", gorm.Expr("balance + ?", contribution)).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// GetUserTransactions lists the user's transactions, newest first, with
// optional date and type filters.
func (s *transactionService) GetUserTransactions(
	userID uint,
	page pagination.PageRequest,
	filter TransactionFilter,
) (*pagination.PageResponse[models.Transaction], error) {
	query := s.db.Preload("Account").
		Where("user_id = ?", userID).
		Order("date DESC")
	if filter.FromDate != nil {
		query = query.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", *filter.ToDate)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	response, err := pagination.Paginate[models.Transaction](query, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return response, nil
}
