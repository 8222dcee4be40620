package utils

import "strconv"

func BuildSurveysListCacheKey(activeOnly *bool) string {
	a := ""
	if activeOnly != nil {
		a = strconv.FormatBool(*activeOnly)
	}

	return "surveys:list:v1:active=" + a
}
