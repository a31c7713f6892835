// Package prompt builds review prompts with a strict JSON output contract.
package prompt

import (
	"fmt"
	"strings"
)

// MaxDiffChars caps the diff size when it must be embedded in the prompt
// (providers that cannot take the diff on stdin).
const MaxDiffChars = 200_000

// PRInfo is the pull request metadata rendered into the prompt.
type PRInfo struct {
	Number     int
	Title      string
	Body       string
	Author     string
	HeadBranch string
	BaseBranch string
	HeadSHA    string
}

// focusDescriptions localizes known focus-area tags. Unknown tags pass
// through verbatim.
var focusDescriptions = map[string]string{
	"quality":     "代码质量和最佳实践",
	"security":    "安全漏洞（SQL注入、XSS、命令注入等）",
	"performance": "性能问题和优化建议",
	"logic":       "逻辑错误和潜在bug",
}

// outputContract is the strict response format instruction. Providers are
// told to answer with a single JSON object; the parser tolerates deviations.
const outputContract = `请完成以下审查任务：
1. **总体评价**：描述本次变更的整体风险、积极影响
2. **发现的问题**：按严重程度列出（严重/中等/轻微），解释原因
3. **改进建议**：给出可执行的修改建议
4. **优点**：指出值得保留或学习的实现

输出要求（必须严格遵守）：
- 最终输出为单个JSON对象，不要包含额外文本、注释或代码块标记
- ` + "`summary_markdown`" + ` 字段使用Markdown编写上述内容，结构清晰
- ` + "`overall_severity`" + ` 取值：critical/high/medium/low/info
- ` + "`inline_comments`" + ` 最多5条，逐条包含精确的 ` + "`path`" + `、` + "`new_line`" + ` (新增行号) 或 ` + "`old_line`" + ` (删除行号)、` + "`comment`" + `，可选 ` + "`suggestion`" + ` 与 ` + "`severity`" + `
- ` + "`suggestion`" + ` 字段如果包含代码，必须使用 Markdown 代码块格式（` + "```语言...```" + `）
- 对无法定位的建议，省略该条，确保所有行号与diff一致

JSON结构示例：
{
  "summary_markdown": "### 总体评价\n...",
  "overall_severity": "medium",
  "inline_comments": [
    {
      "path": "app/main.py",
      "new_line": 123,
      "old_line": null,
      "severity": "high",
      "comment": "描述问题与影响",
      "suggestion": "建议修改为：\n` + "```python\nresult = safe_function(user_input)\n```" + `"
    }
  ]
}
`

// Build constructs the review prompt for providers that receive the diff
// out-of-band (stdin). Deterministic given its inputs.
func Build(focusAreas []string, pr PRInfo, customPrompt string) string {
	var sb strings.Builder

	sb.WriteString("请审查以下Pull Request的代码变更（diff内容已通过stdin提供）。\n\n")
	writeHeader(&sb, focusAreas, pr)
	sb.WriteString(outputContract)
	writeCustomPrompt(&sb, customPrompt)

	return sb.String()
}

// BuildWithDiff constructs the review prompt with the diff embedded directly,
// truncated with an explicit marker when it exceeds MaxDiffChars.
func BuildWithDiff(diff string, focusAreas []string, pr PRInfo, customPrompt string) string {
	var sb strings.Builder

	sb.WriteString("请审查以下Pull Request的代码变更。\n\n")
	writeHeader(&sb, focusAreas, pr)

	truncated := diff
	if len(diff) > MaxDiffChars {
		truncated = diff[:MaxDiffChars] + "\n\n... (diff 内容过长，已截断)"
	}
	sb.WriteString("**Diff内容：**\n```diff\n")
	sb.WriteString(truncated)
	if !strings.HasSuffix(truncated, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")

	sb.WriteString(outputContract)
	writeCustomPrompt(&sb, customPrompt)

	return sb.String()
}

func writeHeader(sb *strings.Builder, focusAreas []string, pr PRInfo) {
	sb.WriteString("**PR信息：**\n")
	fmt.Fprintf(sb, "- 标题: %s\n", orNA(pr.Title))
	fmt.Fprintf(sb, "- 描述: %s\n", orNA(pr.Body))
	fmt.Fprintf(sb, "- 作者: %s\n", orNA(pr.Author))
	sb.WriteString("\n**审查重点：**\n")
	sb.WriteString(FocusText(focusAreas))
	sb.WriteString("\n\n")
}

// writeCustomPrompt appends the caller-supplied suffix after the output
// contract so a truncated custom prompt can never clip the contract itself.
func writeCustomPrompt(sb *strings.Builder, customPrompt string) {
	if text := strings.TrimSpace(customPrompt); text != "" {
		sb.WriteString("\n\n**额外审查要求：**\n")
		sb.WriteString(text)
	}
}

// FocusText renders the localized focus-area list.
func FocusText(focusAreas []string) string {
	descriptions := make([]string, 0, len(focusAreas))
	for _, area := range focusAreas {
		if desc, ok := focusDescriptions[area]; ok {
			descriptions = append(descriptions, desc)
		} else {
			descriptions = append(descriptions, area)
		}
	}
	return strings.Join(descriptions, "、")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
