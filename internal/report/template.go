package report

import (
	"bytes"
	"text/template"
)

// Templates are embedded as Go constants; no external files.

const newsTemplate = `{{range $i, $n := .}}
뉴스 {{inc $i}}:
제목: {{$n.Title}}
작성자: {{author $n.Author}} (좋아요: {{$n.LikeCount}}, 조회수: {{$n.ViewCount}})
시간: {{$n.CreatedAt}}
태그: {{tags $n.Tags}}
내용: {{excerpt $n.Content 500}}
{{end}}`

const marketTemplate = `{{with .Nasdaq}}
📊 나스닥 실시간 정보:
- 현재가: {{printf "%.2f" .Price}} {{.Currency}}
- 변동: {{printf "%+.2f" .Change}} ({{printf "%+.2f" .ChangePct}}%)
- 전일종가: {{printf "%.2f" .PreviousClose}}
- 시장상태: {{.MarketState}}{{if .Stale}} (캐시 데이터){{end}}
{{end}}{{with .FearGreed}}
😨📈 공포탐욕지수:
- 지수: {{.Value}}
- 분류: {{.Classification}}{{if .Stale}} (캐시 데이터){{end}}
{{end}}`

const summaryPromptTemplate = `
{{.Now}} 기준 주식/경제 뉴스와 시장 데이터를 분석하여 **Discord 임베드에 들어갈 간결한 요약**을 작성하세요.

**중요 제약사항:**
- 전체 요약을 **{{.MaxChars}}자 이내**로 제한하세요
- 불필요한 수식어와 장황한 설명을 피하세요

**요구사항 (간결하게):**
1. **시장 현황** (1-2문장): 나스닥 방향성 + 공포탐욕지수 해석
2. **주요 이슈** (2-3개): 가장 중요한 상승/하락 요인만 간단히
3. **핵심 키워드** (3-5개): 현재 시장을 움직이는 주요 키워드

**형식:**
- 각 섹션 사이에 줄바꿈을 넣어 가독성을 높이세요
- 짧고 명확한 문장, 한국어로 작성
- 유사한 뉴스는 통합

**시장 데이터:**
{{.Market}}

**뉴스 데이터:**
{{.News}}

위 정보를 바탕으로 **{{.MaxChars}}자 이내의 간결하고 가독성 좋은 시장 요약**을 작성하세요.
`

const oneLinerPromptTemplate = `
현재 시간: {{.Now}}
아래 시장 데이터와 뉴스 요약을 참고해, 디스코드 임베드 설명에 넣을 초간단 한 줄 요약을 생성하세요.

규칙:
- 반드시 한 줄로만 작성하세요. 줄바꿈을 포함하지 마세요.
- 공백 포함 최대 {{.MaxChars}}자 이내로 제한하세요.
- 시장 방향과 대략의 변동률, 공포탐욕지수 레벨, 눈에 띄는 섹터/테마 1~2개, 대표 종목 1~3개만 담으세요.
- 수식어, 설명, 마크다운, 이모지는 사용하지 마세요.
- 출력 예시: "나스닥 +0.8%, 공포탐욕 62(탐욕), AI/반도체 강세: NVDA TSLA"

시장 데이터:
{{.Market}}

뉴스 데이터:
{{.News}}

요청: 위 정보를 압축해 한 줄 요약만 출력하세요.
`

const fallbackTemplate = `📊 **{{.Now}} 시장 동향 요약** (기본 요약)
{{range .MarketLines}}
{{.}}{{end}}

🔥 **인기 뉴스 (트렌드 분석):**
{{range $i, $n := .Popular}}{{inc $i}}. {{$n.Title}} (by {{author $n.Author}}) 👍{{$n.LikeCount}} 👁️{{$n.ViewCount}}
{{end}}{{if .Tags}}
🏷️ **인기 키워드/태그:**
{{range .Tags}}• {{.Tag}} ({{.Count}}회 언급)
{{end}}{{end}}
📰 **전체 뉴스 헤드라인 (유명한 주식 우선):**
{{.Headlines}}

📈 **분석된 뉴스 수**: {{.Count}}개
⚠️ **참고**: AI 분석이 일시적으로 불가능하여 기본 요약을 제공합니다.
`

var funcs = template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"author":  authorName,
	"tags":    tagList,
	"excerpt": excerpt,
}

var (
	newsTmpl     = template.Must(template.New("news").Funcs(funcs).Parse(newsTemplate))
	marketTmpl   = template.Must(template.New("market").Funcs(funcs).Parse(marketTemplate))
	summaryTmpl  = template.Must(template.New("summary").Funcs(funcs).Parse(summaryPromptTemplate))
	oneLinerTmpl = template.Must(template.New("oneliner").Funcs(funcs).Parse(oneLinerPromptTemplate))
	fallbackTmpl = template.Must(template.New("fallback").Funcs(funcs).Parse(fallbackTemplate))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
