package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

const journalSheet = "Журнал заказов"

var journalHeaders = []string{
	"№", "ID заказа", "Клиент", "Статус", "Позиций", "Сумма товаров", "Доставка", "Итого",
	"Оплата", "Сдача с", "Сдача", "Курьер", "Создан", "Обновлён", "Комментарий",
}

type ReportServiceInterface interface {
	OrderJournal(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error)
	WriteJournalXLSX(w io.Writer, orders []entities.Order) error
}

type reportService struct {
	orderRepo repositories.OrderRepositoryInterface
	logger    *zap.Logger
}

func NewReportService(orderRepo repositories.OrderRepositoryInterface, logger *zap.Logger) ReportServiceInterface {
	return &reportService{orderRepo: orderRepo, logger: logger}
}

// OrderJournal читает заказы прямо из хранилища, минуя локальные копии сессий.
func (s *reportService) OrderJournal(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	orders, err := s.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceError("order_journal", err)
	}
	return orders, nil
}

func journalRow(o entities.Order) []interface{} {
	dateFmt := "02.01.2006 15:04"
	var tendered, change interface{} = "", ""
	if o.CashTendered.Valid {
		tendered = o.CashTendered.Float64
	}
	if o.ChangeDue.Valid {
		change = o.ChangeDue.Float64
	}
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	return []interface{}{
		o.Number, o.ID, o.CustomerID, statusTitle(o.Status), items, o.Subtotal, o.DeliveryFee, o.Total,
		o.PaymentMethod, tendered, change, o.CourierID.String, o.CreatedAt.Format(dateFmt),
		o.UpdatedAt.Format(dateFmt), o.Notes,
	}
}

func statusTitle(s constants.OrderStatus) string {
	return strings.ReplaceAll(s.String(), "_", " ")
}

func (s *reportService) WriteJournalXLSX(w io.Writer, orders []entities.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", journalSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(journalSheet, "A1", &journalHeaders); err != nil {
		return err
	}
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	lastCol, _ := excelize.ColumnNumberToName(len(journalHeaders))
	f.SetCellStyle(journalSheet, "A1", lastCol+"1", style)

	for i, o := range orders {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := journalRow(o)
		if err := f.SetSheetRow(journalSheet, cell, &row); err != nil {
			return fmt.Errorf("строка %d журнала: %w", i+2, err)
		}
	}
	f.SetColWidth(journalSheet, "B", "C", 38)
	f.SetColWidth(journalSheet, "D", "D", 18)
	f.SetColWidth(journalSheet, "M", "N", 18)
	f.SetColWidth(journalSheet, "O", "O", 40)

	s.logger.Debug("журнал заказов сформирован", zap.Int("rows", len(orders)))
	return f.Write(w)
}
