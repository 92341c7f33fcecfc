package matcher

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"HeadlineRadar/internal/domain"
)

// LoadGroupsFile reads keyword groups from a text file, see ParseGroups.
func LoadGroupsFile(path string) ([]domain.KeywordGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keywords file: %w", err)
	}
	defer f.Close()

	groups, err := ParseGroups(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return groups, nil
}

// ParseGroups reads blank-line separated keyword groups. Inside a group:
//
//	#word    display label
//	!term    exclude term
//	@N       rank threshold
//	// ...   comment
//	term     include term
//
// Without a #word line the first include term is the label.
func ParseGroups(r io.Reader) ([]domain.KeywordGroup, error) {
	var (
		groups  []domain.KeywordGroup
		current domain.KeywordGroup
		lineNo  int
		started bool
	)

	flush := func() error {
		if !started {
			return nil
		}
		if len(current.IncludeTerms) == 0 {
			return fmt.Errorf("group ending at line %d has no include terms", lineNo)
		}
		if current.Word == "" {
			current.Word = current.IncludeTerms[0]
		}
		groups = append(groups, current)
		current = domain.KeywordGroup{}
		started = false
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case strings.HasPrefix(line, "//"):
			continue
		}

		started = true
		switch line[0] {
		case '#':
			current.Word = strings.TrimSpace(line[1:])
		case '!':
			if term := strings.TrimSpace(line[1:]); term != "" {
				current.ExcludeTerms = append(current.ExcludeTerms, term)
			}
		case '@':
			n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("line %d: invalid rank threshold %q", lineNo, line)
			}
			current.RankThreshold = n
		default:
			current.IncludeTerms = append(current.IncludeTerms, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keywords: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return groups, nil
}
