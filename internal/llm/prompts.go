package llm

import (
	"fmt"
	"strings"
)

func trendingKeywordsPrompt(category string, count int) string {
	var b strings.Builder
	b.WriteString("당신은 한국 블로그 트렌드 분석가입니다.\n")
	if category != "" {
		fmt.Fprintf(&b, "'%s' 분야에서 ", category)
	}
	fmt.Fprintf(&b, "지금 한국 독자들이 많이 검색하는 블로그 키워드 %d개를 추천해 주세요.\n", count)
	b.WriteString("규칙:\n")
	b.WriteString("- 한 줄에 키워드 하나만 작성합니다.\n")
	b.WriteString("- 번호, 설명, 따옴표 없이 키워드만 작성합니다.\n")
	b.WriteString("- 각 키워드는 2~4 단어로 구성합니다.\n")
	return b.String()
}

func topicsPrompt(keyword string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "키워드: %s\n\n", keyword)
	fmt.Fprintf(&b, "위 키워드로 한국어 블로그 글 제목 %d개를 만들어 주세요.\n", count)
	b.WriteString("규칙:\n")
	b.WriteString("- 모든 제목에 키워드를 자연스럽게 포함합니다.\n")
	b.WriteString("- 검색 유입을 고려해 구체적이고 클릭하고 싶은 제목으로 작성합니다.\n")
	b.WriteString("- 한 줄에 제목 하나, 번호나 설명 없이 제목만 작성합니다.\n")
	return b.String()
}

func articlePrompt(topic, keyword string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "제목: %s\n", topic)
	fmt.Fprintf(&b, "핵심 키워드: %s\n\n", keyword)
	b.WriteString("위 제목으로 한국어 블로그 글을 마크다운 형식으로 작성해 주세요.\n")
	b.WriteString("규칙:\n")
	b.WriteString("- 도입부, 본문 소제목(## 사용) 3~5개, 마무리 순서로 구성합니다.\n")
	b.WriteString("- 전체 분량은 공백 포함 2000자 이상으로 작성합니다.\n")
	b.WriteString("- 핵심 키워드를 본문에 자연스럽게 여러 번 포함합니다.\n")
	b.WriteString("- 첫 줄에 제목을 반복하지 않습니다.\n")
	return b.String()
}

func imagePromptPrompt(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Blog title (Korean): %s\n\n", topic)
	b.WriteString("Write one short English prompt for an image generation model that would make a fitting blog header photo.\n")
	b.WriteString("Describe the scene only. No text, letters or logos in the image. Answer with the prompt alone.\n")
	return b.String()
}
