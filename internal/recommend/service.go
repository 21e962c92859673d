package recommend

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/internal/catalog"
	"github.com/libris-app/libris-backend/pkg/db/models"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
)

// catalogCap bounds how many titles the system prompt lists.
const catalogCap = 200

var bookIDPattern = regexp.MustCompile(`\[BOOK_ID:([0-9a-fA-F-]{36})\]`)

// ChatMessage is one prior turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user model"`
	Content string `json:"content" validate:"required"`
}

// ChatInput carries the user's message plus conversation history.
type ChatInput struct {
	Message string        `json:"message" validate:"required"`
	History []ChatMessage `json:"history,omitempty"`
}

// ChatResult is the assistant's reply with any catalog recommendations it
// mentioned.
type ChatResult struct {
	Response           string            `json:"response"`
	Recommendations    []catalog.BookDTO `json:"recommendations"`
	HasRecommendations bool              `json:"has_recommendations"`
}

// Service is the reading-assistant surface exposed to the API layer.
type Service interface {
	Chat(ctx context.Context, input ChatInput) (*ChatResult, error)
	Welcome() *ChatResult
	QuickReplies() []string
}

type generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type service struct {
	gen   generator
	books catalog.Repository
}

// NewService wires the assistant with its text generator and the catalog it
// recommends from.
func NewService(gen generator, books catalog.Repository) (Service, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{gen: gen, books: books}, nil
}

// Chat sends the user's message grounded on the currently available catalog
// and extracts the titles the model recommended.
func (s *service) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	available, err := s.books.List(ctx, catalog.ListBooksFilters{AvailableOnly: true}, catalogCap, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list available books")
	}

	messages := buildConversation(available, input.History, message)
	reply, err := s.gen.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	recommendations := extractRecommendations(reply, available)
	return &ChatResult{
		Response:           reply,
		Recommendations:    recommendations,
		HasRecommendations: len(recommendations) > 0,
	}, nil
}

// Welcome returns the canned greeting shown before the first user message.
func (s *service) Welcome() *ChatResult {
	return &ChatResult{
		Response: "👋 Cześć! Jestem Twoim asystentem bibliotecznym. Pomogę Ci znaleźć idealną książkę do czytania!\n\n" +
			"Opowiedz mi o swoich zainteresowaniach:\n" +
			"• Jakie gatunki literackie lubisz? (np. fantasy, kryminał, romans, science fiction)\n" +
			"• Czy masz ulubionego autora?\n" +
			"• Jakiej książki szukasz - czegoś lekkiego czy może głębokiego?\n\n" +
			"Zacznijmy rozmowę! 📚",
		Recommendations: []catalog.BookDTO{},
	}
}

// QuickReplies returns suggested conversation starters.
func (s *service) QuickReplies() []string {
	return []string{
		"Szukam fantastyki",
		"Polecisz coś z polskiej literatury?",
		"Chcę coś lekkiego do czytania",
		"Lubię kryminały",
		"Polecasz klasykę?",
		"Coś współczesnego proszę",
	}
}

func buildConversation(available []models.Book, history []ChatMessage, message string) []Message {
	messages := []Message{
		{Role: "user", Text: buildSystemContext(available)},
		{Role: "model", Text: "Rozumiem! Jestem gotowy pomagać użytkownikom w znalezieniu idealnych książek z naszej biblioteki. Zacznę od pytań o ich preferencje."},
	}
	for _, turn := range history {
		messages = append(messages, Message{Role: turn.Role, Text: turn.Content})
	}
	return append(messages, Message{Role: "user", Text: message})
}

func buildSystemContext(available []models.Book) string {
	var sb strings.Builder
	sb.WriteString("Jesteś przyjaznym asystentem bibliotecznym specjalizującym się w rekomendacjach książek. ")
	sb.WriteString("Twoje zadanie to pomóc użytkownikom znaleźć idealne książki do czytania.\n\n")
	sb.WriteString("DOSTĘPNE KSIĄŻKI W BIBLIOTECE:\n")

	for i, book := range available {
		sb.WriteString(fmt.Sprintf("%d. [ID:%s] %q - %s", i+1, book.ID, book.Title, book.Author))
		if book.PublishedYear != nil {
			sb.WriteString(fmt.Sprintf(" (%d)", *book.PublishedYear))
		}
		if book.ISBN != nil {
			sb.WriteString(fmt.Sprintf(" [ISBN: %s]", *book.ISBN))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`
TWOJE ZASADY:
1. Bądź przyjazny, pomocny i entuzjastyczny w stosunku do książek
2. Zadawaj pytania, aby lepiej zrozumieć gusta użytkownika
3. Rekomenduj TYLKO książki z powyższej listy dostępnych w bibliotece
4. Gdy rekomendujesz książki, zawsze podawaj ich ID w formacie: [BOOK_ID:<id>]
5. Wyjaśniaj, dlaczego dane książki mogą się użytkownikowi spodobać
6. Jeśli użytkownik pyta o książkę, której nie ma w bibliotece, grzecznie poinformuj o tym i zaproponuj podobne dostępne tytuły
7. Odpowiadaj po polsku
8. Bądź zwięzły - odpowiedzi do 150 słów, chyba że użytkownik pyta o więcej szczegółów
9. Jeżeli w bazie brakuje książki odpowiedniej do preferencji czytelnika, koniecznie poinformuj go o tym

Rozpocznij rozmowę od przywitania i zapytania o preferencje czytelnicze użytkownika.`)

	return sb.String()
}

// extractRecommendations maps [BOOK_ID:<uuid>] mentions back to catalog rows,
// keeping first-mention order and dropping ids outside the available list.
func extractRecommendations(reply string, available []models.Book) []catalog.BookDTO {
	byID := make(map[uuid.UUID]*models.Book, len(available))
	for i := range available {
		byID[available[i].ID] = &available[i]
	}

	seen := map[uuid.UUID]bool{}
	recommendations := []catalog.BookDTO{}
	for _, match := range bookIDPattern.FindAllStringSubmatch(reply, -1) {
		id, err := uuid.Parse(match[1])
		if err != nil || seen[id] {
			continue
		}
		book, ok := byID[id]
		if !ok {
			continue
		}
		seen[id] = true
		recommendations = append(recommendations, *catalog.NewBookDTO(book))
	}
	return recommendations
}
