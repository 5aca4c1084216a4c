package domain

import "time"

// Tier is the four-level qualification bucket of the canonical scoring scheme.
type Tier string

const (
	TierFrio        Tier = "FRIO"
	TierMorno       Tier = "MORNO"
	TierQuente      Tier = "QUENTE"
	TierMuitoQuente Tier = "MUITO_QUENTE"
)

// Ordinal returns the tier's position in the FRIO..MUITO_QUENTE ordering.
func (t Tier) Ordinal() int {
	switch t {
	case TierMorno:
		return 1
	case TierQuente:
		return 2
	case TierMuitoQuente:
		return 3
	default:
		return 0
	}
}

// Grade is the legacy letter classification (B lowest, AAA highest).
type Grade string

const (
	GradeB   Grade = "B"
	GradeA   Grade = "A"
	GradeAA  Grade = "AA"
	GradeAAA Grade = "AAA"
)

// Ordinal returns the grade's position in the B..AAA ordering.
func (g Grade) Ordinal() int {
	switch g {
	case GradeA:
		return 1
	case GradeAA:
		return 2
	case GradeAAA:
		return 3
	default:
		return 0
	}
}

// Engagement summarizes response behavior derived from mean response time.
type Engagement string

const (
	EngagementBaixo Engagement = "BAIXO"
	EngagementMedio Engagement = "MEDIO"
	EngagementAlto  Engagement = "ALTO"
)

// Urgency labels a lead or symptom for display prioritization.
type Urgency string

const (
	UrgencyBaixa Urgency = "baixa"
	UrgencyMedia Urgency = "media"
	UrgencyAlta  Urgency = "alta"
)

// Answer is one questionnaire response. Immutable once recorded; keyed by
// question id in the session's answer map, so re-answering overwrites.
type Answer struct {
	Pergunta string `json:"pergunta"`
	Resposta string `json:"resposta"`
	Pontos   int    `json:"pontos"`
	TempoMs  int64  `json:"tempo"`
	Variante string `json:"variante,omitempty"`
}

// Comportamento captures the behavioral metadata attached to a qualification.
type Comportamento struct {
	TempoMedioRespostaMs int64      `json:"tempoMedioResposta"`
	TempoTotalMs         int64      `json:"tempoTotalQuestionario"`
	VoltasPerguntas      int        `json:"voltasPerguntas"`
	Engajamento          Engagement `json:"engajamento"`
}

// Sintoma is a symptom flagged because its answer crossed a per-symptom
// point threshold, independent of the aggregate score.
type Sintoma struct {
	Nome       string  `json:"nome"`
	Urgencia   Urgency `json:"urgencia"`
	Explicacao string  `json:"explicacao"`
}

// Qualification is the derived scoring outcome, computed once at quiz
// completion and immutable thereafter.
type Qualification struct {
	Score         int           `json:"score"`
	Categoria     Tier          `json:"categoria"`
	Classificacao Grade         `json:"classificacaoFinal"`
	Prioridade    int           `json:"prioridade"`
	Motivos       []string      `json:"motivos"`
	Urgencia      Urgency       `json:"urgencia"`
	Sintomas      []Sintoma     `json:"sintomas,omitempty"`
	Comportamento Comportamento `json:"comportamento"`

	// Result-card copy derived from the legacy scheme's category bands.
	CategoriaSintomas string `json:"categoriaSintomas,omitempty"`
	Expectativa       string `json:"expectativa,omitempty"`
}

// Lead is a completed quiz submission.
type Lead struct {
	ID                 string            `json:"id,omitempty"`
	Nome               string            `json:"nome"`
	Email              string            `json:"email"`
	Telefone           string            `json:"telefone,omitempty"`
	Idade              int               `json:"idade,omitempty"`
	Variante           string            `json:"variante,omitempty"`
	VersaoQuestionario string            `json:"versao_questionario,omitempty"`
	Origem             string            `json:"origem,omitempty"`
	Qualificacao       Qualification     `json:"qualificacao"`
	TempoTotalMs       int64             `json:"tempo_total,omitempty"`
	Dispositivo        *DeviceInfo       `json:"dispositivo,omitempty"`
	Respostas          map[string]Answer `json:"respostas,omitempty"`
	CriadoEm           time.Time         `json:"criado_em,omitempty"`

	// Conversion fields, filled when a payment event is correlated back.
	Converteu          bool      `json:"converteu,omitempty"`
	PaymentID          string    `json:"payment_id,omitempty"`
	ValorConversao     float64   `json:"valor_conversao,omitempty"`
	DataConversao      time.Time `json:"data_conversao,omitempty"`
	TempoParaConversao int64     `json:"tempo_para_conversao,omitempty"`
}

// Event types recorded in the event log.
const (
	EventSessionStart     = "session_start"
	EventQuestionAnswered = "question_answered"
	EventQuizCompleted    = "quiz_completed"
	EventNavigationBack   = "navigation_back"
	EventNavigationNext   = "navigation_next"
	EventInputChange      = "input_change"
	EventCTAClick         = "agendamento_click"
	EventSaleRecorded     = "venda_registrada"
)

// Event is a typed, timestamped, session-tagged interaction record.
// Append-only; never mutated.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Variante  string         `json:"variante"`
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	UserAgent string         `json:"userAgent,omitempty"`
	URL       string         `json:"url,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// View is one recorded page view.
type View struct {
	ID        string    `json:"id,omitempty"`
	Variante  string    `json:"variante"`
	UserAgent string    `json:"user_agent,omitempty"`
	URL       string    `json:"url,omitempty"`
	CriadoEm  time.Time `json:"criado_em,omitempty"`
}

// Venda is a sale reported through the sales webhook.
type Venda struct {
	ID       string         `json:"id,omitempty"`
	Nome     string         `json:"nome"`
	Email    string         `json:"email"`
	Telefone string         `json:"telefone"`
	Valor    float64        `json:"valor"`
	Produto  string         `json:"produto"`
	Variante string         `json:"variante"`
	Origem   string         `json:"origem"`
	Status   string         `json:"status,omitempty"`
	Extra    map[string]any `json:"dadosCompletos,omitempty"`
	CriadoEm time.Time      `json:"criado_em,omitempty"`
}

// Conversao correlates a payment event with the lead that produced it.
type Conversao struct {
	ID                 string         `json:"id,omitempty"`
	LeadID             string         `json:"lead_id"`
	LeadEmail          string         `json:"lead_email"`
	LeadNome           string         `json:"lead_nome"`
	LeadVariante       string         `json:"lead_variante"`
	PaymentID          string         `json:"payment_id"`
	PaymentStatus      string         `json:"payment_status"`
	PaymentAmount      float64        `json:"payment_amount"`
	PaymentCurrency    string         `json:"payment_currency"`
	CustomerName       string         `json:"customer_name"`
	CustomerEmail      string         `json:"customer_email"`
	CustomerPhone      string         `json:"customer_phone,omitempty"`
	ProductID          string         `json:"product_id,omitempty"`
	ProductName        string         `json:"product_name,omitempty"`
	TempoParaConversao int64          `json:"tempo_para_conversao,omitempty"`
	EventoOrigem       string         `json:"evento_origem"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CriadoEm           time.Time      `json:"criado_em,omitempty"`
}

// DeviceInfo is derived from the request user agent.
type DeviceInfo struct {
	Dispositivo        string `json:"dispositivo"`
	SistemaOperacional string `json:"sistema_operacional"`
	Navegador          string `json:"navegador"`
}
