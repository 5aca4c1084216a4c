// Package postgres holds the remote store: bun repositories for writes
// and a pgx reader for the dashboard aggregation.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/uptrace/bun"
)

type leadRow struct {
	bun.BaseModel `bun:"table:leads"`

	ID                 string                   `bun:"id,pk"`
	Nome               string                   `bun:"nome"`
	Email              string                   `bun:"email"`
	Telefone           string                   `bun:"telefone"`
	Idade              int                      `bun:"idade"`
	Variante           string                   `bun:"variante"`
	VersaoQuestionario string                   `bun:"versao_questionario"`
	Origem             string                   `bun:"origem"`
	Qualificacao       domain.Qualification     `bun:"qualificacao,type:jsonb"`
	Respostas          map[string]domain.Answer `bun:"respostas,type:jsonb"`
	TempoTotal         int64                    `bun:"tempo_total"`
	Converteu          bool                     `bun:"converteu"`
	PaymentID          string                   `bun:"payment_id"`
	ValorConversao     float64                  `bun:"valor_conversao"`
	DataConversao      time.Time                `bun:"data_conversao,nullzero"`
	TempoParaConversao int64                    `bun:"tempo_para_conversao"`
	CriadoEm           time.Time                `bun:"criado_em,nullzero"`
}

type viewRow struct {
	bun.BaseModel `bun:"table:view_sessions"`

	ID        string    `bun:"id,pk"`
	Variante  string    `bun:"variante"`
	UserAgent string    `bun:"user_agent"`
	URL       string    `bun:"url"`
	CriadoEm  time.Time `bun:"criado_em,nullzero"`
}

type vendaRow struct {
	bun.BaseModel `bun:"table:vendas"`

	ID       string         `bun:"id,pk"`
	Nome     string         `bun:"nome"`
	Email    string         `bun:"email"`
	Telefone string         `bun:"telefone"`
	Valor    float64        `bun:"valor"`
	Produto  string         `bun:"produto"`
	Variante string         `bun:"variante"`
	Origem   string         `bun:"origem"`
	Status   string         `bun:"status"`
	Extra    map[string]any `bun:"dados_completos,type:jsonb"`
	CriadoEm time.Time      `bun:"criado_em,nullzero"`
}

type conversaoRow struct {
	bun.BaseModel `bun:"table:conversoes"`

	ID                 string         `bun:"id,pk"`
	LeadID             string         `bun:"lead_id"`
	LeadEmail          string         `bun:"lead_email"`
	LeadNome           string         `bun:"lead_nome"`
	LeadVariante       string         `bun:"lead_variante"`
	PaymentID          string         `bun:"payment_id"`
	PaymentStatus      string         `bun:"payment_status"`
	PaymentAmount      float64        `bun:"payment_amount"`
	PaymentCurrency    string         `bun:"payment_currency"`
	CustomerName       string         `bun:"customer_name"`
	CustomerEmail      string         `bun:"customer_email"`
	CustomerPhone      string         `bun:"customer_phone"`
	ProductID          string         `bun:"product_id"`
	ProductName        string         `bun:"product_name"`
	TempoParaConversao int64          `bun:"tempo_para_conversao"`
	EventoOrigem       string         `bun:"evento_origem"`
	Metadata           map[string]any `bun:"metadata,type:jsonb"`
	CriadoEm           time.Time      `bun:"criado_em,nullzero"`
}

// dashboardRow mirrors the lead into the denormalized table the admin
// dashboard reads directly; it is a secondary copy, never the source of
// truth.
type dashboardRow struct {
	bun.BaseModel `bun:"table:quiz_dashboard"`

	ID            string    `bun:"id,pk"`
	Nome          string    `bun:"nome"`
	Email         string    `bun:"email"`
	Variante      string    `bun:"variante"`
	Score         int       `bun:"score"`
	Categoria     string    `bun:"categoria"`
	Classificacao string    `bun:"classificacao"`
	Prioridade    int       `bun:"prioridade"`
	Urgencia      string    `bun:"urgencia"`
	CriadoEm      time.Time `bun:"criado_em,nullzero"`
}

// Store implements the remote sink on bun.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) InsertLead(ctx context.Context, lead domain.Lead) error {
	row := &leadRow{
		ID:                 lead.ID,
		Nome:               lead.Nome,
		Email:              lead.Email,
		Telefone:           lead.Telefone,
		Idade:              lead.Idade,
		Variante:           lead.Variante,
		VersaoQuestionario: lead.VersaoQuestionario,
		Origem:             lead.Origem,
		Qualificacao:       lead.Qualificacao,
		Respostas:          lead.Respostas,
		TempoTotal:         lead.TempoTotalMs,
		Converteu:          lead.Converteu,
		PaymentID:          lead.PaymentID,
		ValorConversao:     lead.ValorConversao,
		DataConversao:      lead.DataConversao,
		TempoParaConversao: lead.TempoParaConversao,
		CriadoEm:           lead.CriadoEm,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *Store) InsertView(ctx context.Context, view domain.View) error {
	row := &viewRow{
		ID:        view.ID,
		Variante:  view.Variante,
		UserAgent: view.UserAgent,
		URL:       view.URL,
		CriadoEm:  view.CriadoEm,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

func (s *Store) InsertVenda(ctx context.Context, venda domain.Venda) error {
	row := &vendaRow{
		ID:       venda.ID,
		Nome:     venda.Nome,
		Email:    venda.Email,
		Telefone: venda.Telefone,
		Valor:    venda.Valor,
		Produto:  venda.Produto,
		Variante: venda.Variante,
		Origem:   venda.Origem,
		Status:   venda.Status,
		Extra:    venda.Extra,
		CriadoEm: venda.CriadoEm,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert venda: %w", err)
	}
	return nil
}

func (s *Store) InsertConversao(ctx context.Context, conv domain.Conversao) error {
	row := &conversaoRow{
		ID:                 conv.ID,
		LeadID:             conv.LeadID,
		LeadEmail:          conv.LeadEmail,
		LeadNome:           conv.LeadNome,
		LeadVariante:       conv.LeadVariante,
		PaymentID:          conv.PaymentID,
		PaymentStatus:      conv.PaymentStatus,
		PaymentAmount:      conv.PaymentAmount,
		PaymentCurrency:    conv.PaymentCurrency,
		CustomerName:       conv.CustomerName,
		CustomerEmail:      conv.CustomerEmail,
		CustomerPhone:      conv.CustomerPhone,
		ProductID:          conv.ProductID,
		ProductName:        conv.ProductName,
		TempoParaConversao: conv.TempoParaConversao,
		EventoOrigem:       conv.EventoOrigem,
		Metadata:           conv.Metadata,
		CriadoEm:           conv.CriadoEm,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert conversao: %w", err)
	}
	return nil
}

func (s *Store) MirrorDashboard(ctx context.Context, lead domain.Lead) error {
	row := &dashboardRow{
		ID:            lead.ID,
		Nome:          lead.Nome,
		Email:         lead.Email,
		Variante:      lead.Variante,
		Score:         lead.Qualificacao.Score,
		Categoria:     string(lead.Qualificacao.Categoria),
		Classificacao: string(lead.Qualificacao.Classificacao),
		Prioridade:    lead.Qualificacao.Prioridade,
		Urgencia:      string(lead.Qualificacao.Urgencia),
		CriadoEm:      lead.CriadoEm,
	}
	if _, err := s.db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("mirror dashboard: %w", err)
	}
	return nil
}

func (s *Store) UpdateLeadConversion(ctx context.Context, lead domain.Lead) error {
	res, err := s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Set("converteu = ?", lead.Converteu).
		Set("payment_id = ?", lead.PaymentID).
		Set("valor_conversao = ?", lead.ValorConversao).
		Set("data_conversao = ?", lead.DataConversao).
		Set("tempo_para_conversao = ?", lead.TempoParaConversao).
		Where("id = ? OR lower(email) = lower(?)", lead.ID, lead.Email).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update lead conversion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

// ClearTestData removes the rows the test funnel produces: leads (and
// their dashboard mirrors) named Teste% or using a teste email, plus
// vendas and conversoes referencing them.
func (s *Store) ClearTestData(ctx context.Context) error {
	const filter = "nome LIKE 'Teste%' OR email LIKE '%teste%'"

	if _, err := s.db.NewDelete().Model((*dashboardRow)(nil)).Where(filter).Exec(ctx); err != nil {
		return fmt.Errorf("clear dashboard: %w", err)
	}
	if _, err := s.db.NewDelete().Model((*leadRow)(nil)).Where(filter).Exec(ctx); err != nil {
		return fmt.Errorf("clear leads: %w", err)
	}
	if _, err := s.db.NewDelete().Model((*vendaRow)(nil)).Where(filter).Exec(ctx); err != nil {
		return fmt.Errorf("clear vendas: %w", err)
	}
	if _, err := s.db.NewDelete().Model((*conversaoRow)(nil)).
		Where("lead_nome LIKE 'Teste%' OR customer_email LIKE '%teste%'").Exec(ctx); err != nil {
		return fmt.Errorf("clear conversoes: %w", err)
	}
	return nil
}
