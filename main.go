// @title 数字成熟度诊断 API
// @version 1.0
// @description 诊断问卷、结果计算与结果页内容的后端服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import "maturity_backend/cmd"

func main() {
	cmd.Execute()
}
