package render

import (
	"fmt"
	"regexp"
	"strings"

	"chessreel/internal/services"
)

// sanPattern accepts standard algebraic moves with optional disambiguation,
// capture marker, promotion, and check or mate suffix.
var sanPattern = regexp.MustCompile(`^(?:[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=[QRBN])?|O-O(?:-O)?)[+#]?$`)

var gameResults = map[string]bool{
	"1-0":     true,
	"0-1":     true,
	"1/2-1/2": true,
	"*":       true,
}

// ParseMoves extracts the move list from game notation, rejecting input that
// contains no playable moves. Tag pairs, comments, variations, numeric
// annotations, and the game result are skipped.
func ParseMoves(pgn string) ([]string, error) {
	body := stripTagPairs(pgn)
	body = stripComments(body)

	var moves []string
	for _, token := range strings.Fields(body) {
		token = strings.TrimSpace(token)
		if token == "" || gameResults[token] {
			continue
		}
		if strings.HasPrefix(token, "$") {
			continue
		}
		// Move numbers arrive standalone ("12."), glued to the white move
		// ("12.e4"), or as a black continuation ("12...Nf6").
		token = stripMoveNumber(token)
		if token == "" {
			continue
		}
		if !sanPattern.MatchString(token) {
			return nil, services.Wrap(services.ErrValidation, "render", "parse notation",
				fmt.Sprintf("unrecognized move token %q", token), nil)
		}
		moves = append(moves, token)
	}
	if len(moves) == 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "parse notation", "no moves found", nil)
	}
	return moves, nil
}

func stripTagPairs(input string) string {
	var out strings.Builder
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

func stripComments(input string) string {
	var out strings.Builder
	depthBrace := 0
	depthParen := 0
	for _, r := range input {
		switch r {
		case '{':
			depthBrace++
		case '}':
			if depthBrace > 0 {
				depthBrace--
			}
		case '(':
			depthParen++
		case ')':
			if depthParen > 0 {
				depthParen--
			}
		default:
			if depthBrace == 0 && depthParen == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

func stripMoveNumber(token string) string {
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	if i == 0 {
		return token
	}
	j := i
	for j < len(token) && token[j] == '.' {
		j++
	}
	if j == i {
		return token
	}
	return token[j:]
}
