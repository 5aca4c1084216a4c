package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MetricsReader reads the hosted tables for the dashboard aggregation.
type MetricsReader struct {
	pool *pgxpool.Pool
}

func NewMetricsReader(pool *pgxpool.Pool) *MetricsReader {
	return &MetricsReader{pool: pool}
}

func (r *MetricsReader) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *MetricsReader) Leads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome, email, telefone, idade, variante, versao_questionario,
		       origem, qualificacao, tempo_total, converteu, payment_id,
		       valor_conversao, criado_em
		FROM leads
		ORDER BY criado_em`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var (
			lead      domain.Lead
			telefone  sql.NullString
			versao    sql.NullString
			origem    sql.NullString
			paymentID sql.NullString
			qualRaw   []byte
			criadoEm  sql.NullTime
		)
		if err := rows.Scan(&lead.ID, &lead.Nome, &lead.Email, &telefone,
			&lead.Idade, &lead.Variante, &versao, &origem, &qualRaw,
			&lead.TempoTotalMs, &lead.Converteu, &paymentID,
			&lead.ValorConversao, &criadoEm); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead.Telefone = telefone.String
		lead.VersaoQuestionario = versao.String
		lead.Origem = origem.String
		lead.PaymentID = paymentID.String
		if criadoEm.Valid {
			lead.CriadoEm = criadoEm.Time
		}
		if len(qualRaw) > 0 {
			if err := json.Unmarshal(qualRaw, &lead.Qualificacao); err != nil {
				return nil, fmt.Errorf("decode qualificacao for %s: %w", lead.ID, err)
			}
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *MetricsReader) Views(ctx context.Context) ([]domain.View, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, variante, user_agent, url, criado_em
		FROM view_sessions
		ORDER BY criado_em`)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	defer rows.Close()

	var views []domain.View
	for rows.Next() {
		var (
			view      domain.View
			userAgent sql.NullString
			url       sql.NullString
			criadoEm  sql.NullTime
		)
		if err := rows.Scan(&view.ID, &view.Variante, &userAgent, &url, &criadoEm); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		view.UserAgent = userAgent.String
		view.URL = url.String
		if criadoEm.Valid {
			view.CriadoEm = criadoEm.Time
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (r *MetricsReader) Conversions(ctx context.Context) ([]domain.Conversao, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, lead_email, lead_nome, lead_variante, payment_id,
		       payment_status, payment_amount, tempo_para_conversao, criado_em
		FROM conversoes
		ORDER BY criado_em`)
	if err != nil {
		return nil, fmt.Errorf("query conversoes: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversao
	for rows.Next() {
		var (
			conv     domain.Conversao
			leadID   sql.NullString
			criadoEm sql.NullTime
		)
		if err := rows.Scan(&conv.ID, &leadID, &conv.LeadEmail, &conv.LeadNome,
			&conv.LeadVariante, &conv.PaymentID, &conv.PaymentStatus,
			&conv.PaymentAmount, &conv.TempoParaConversao, &criadoEm); err != nil {
			return nil, fmt.Errorf("scan conversao: %w", err)
		}
		conv.LeadID = leadID.String
		if criadoEm.Valid {
			conv.CriadoEm = criadoEm.Time
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
