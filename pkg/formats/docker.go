package formats

import (
	"fmt"
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

// DockerfileParser extracts base images, copied paths and build steps.
type DockerfileParser struct{}

func NewDockerfileParser() *DockerfileParser { return &DockerfileParser{} }

func (p *DockerfileParser) Format() model.Format { return model.FormatDockerfile }

func (p *DockerfileParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: model.FormatDockerfile}

	for lineNum, line := range splitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch strings.ToUpper(parts[0]) {
		case "FROM":
			if len(parts) < 2 {
				continue
			}
			image := parts[1]
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:  "base_image_" + image,
				Kind:  model.KindContainerImage,
				Range: lineRange(lineNum+1, len(line)),
			})
			record.Dependencies = append(record.Dependencies, model.Dependency{
				Target: image,
				Kind:   model.DepBaseImage,
			})
		case "COPY", "ADD":
			// Needs at least a source and a destination. Flags such as
			// --from=builder count as the source here, same as upstream
			// docker tooling that only tokenizes the line.
			if len(parts) >= 3 {
				record.Symbols = append(record.Symbols, model.Symbol{
					Name:  "file_copy_" + parts[1],
					Kind:  model.KindReference,
					Range: lineRange(lineNum+1, len(line)),
				})
			}
		case "RUN":
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:      fmt.Sprintf("run_command_%d", lineNum+1),
				Kind:      model.KindBuildTask,
				Range:     lineRange(lineNum+1, len(line)),
				Docstring: strings.Join(parts[1:], " "),
			})
		}
	}
	return record, nil
}
