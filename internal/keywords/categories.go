package keywords

import "strings"

// Category groups evergreen keywords used when trending suggestions are
// unavailable.
type Category struct {
	ID       string
	Name     string
	Keywords []string
}

// Categories is the built-in keyword table.
var Categories = []Category{
	{ID: "health", Name: "건강", Keywords: []string{
		"건강관리", "면역력 높이는 음식", "홈트레이닝 루틴", "수면의 질 개선", "혈압 낮추는 습관",
		"다이어트 식단", "스트레칭 방법", "영양제 추천",
	}},
	{ID: "finance", Name: "재테크", Keywords: []string{
		"재테크 기초", "적금 추천", "ETF 투자", "연말정산 절세", "신용점수 올리는 법",
		"가계부 쓰는 법", "청약 통장", "배당주 투자",
	}},
	{ID: "travel", Name: "여행", Keywords: []string{
		"국내 여행지 추천", "제주도 여행 코스", "가을 단풍 명소", "캠핑 준비물", "해외여행 준비",
		"당일치기 여행", "부산 맛집 여행", "여행 경비 절약",
	}},
	{ID: "food", Name: "음식", Keywords: []string{
		"간단한 집밥 레시피", "에어프라이어 요리", "도시락 메뉴", "제철 음식", "비건 레시피",
		"홈카페 음료", "밀프렙 방법", "전통 음식 만들기",
	}},
	{ID: "it", Name: "IT", Keywords: []string{
		"생성형 AI 활용법", "스마트폰 배터리 관리", "노트북 추천", "개인정보 보호 설정", "업무 자동화 도구",
		"코딩 독학", "클라우드 저장소 비교", "유용한 앱 추천",
	}},
	{ID: "parenting", Name: "육아", Keywords: []string{
		"신생아 육아 팁", "아이 독서 습관", "이유식 만들기", "유아 놀이 아이디어", "초등 공부 습관",
		"육아 휴직 제도", "아이 훈육 방법", "가족 나들이 장소",
	}},
	{ID: "lifestyle", Name: "라이프스타일", Keywords: []string{
		"미니멀 라이프", "정리정돈 노하우", "아침 루틴", "자기계발 습관", "반려식물 키우기",
		"취미 추천", "셀프 인테리어", "시간 관리 방법",
	}},
}

// FindCategory looks a category up by ID or Korean name, case-insensitively.
func FindCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(c.ID, name) || c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// AllKeywords returns every keyword of every category in table order.
func AllKeywords() []string {
	var all []string
	for _, c := range Categories {
		all = append(all, c.Keywords...)
	}
	return all
}
