package helper_util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetPageParams(c *gin.Context) (page int, perPage int, err error) {
	page, err = strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		return 0, 0, err
	}
	perPage, err = strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}
