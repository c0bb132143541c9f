// Package crawlers 提供搜索引擎页面的浏览器实现
//
// # 概述
//
// serp 包只依赖 BrowserPage 接口,本包提供两种实现:
//
//   - RodPage: 基于go-rod的真实浏览器标签页,注入stealth脚本,支持点击、截图和执行脚本
//   - StaticPage: 基于Colly的HTTP抓取,只能打开页面和读取HTML,无法处理验证码
//
// # 浏览器与标签页池
//
// 不使用代理时所有worker共享一个浏览器,通过 PagePool 借用标签页:
//
//	browser, err := LaunchBrowser(BrowserOptions{Headless: true}, headerProvider)
//	pool := NewPagePool(browser, monitor, threads)
//	defer pool.Close()
//
//	page, err := pool.Acquire(ctx)
//	if err != nil { /* 处理错误 */ }
//	defer pool.Release(page)
//
// 使用代理时每个任务单独启动浏览器,任务结束后关闭。
//
// # 资源监控
//
// ResourceMonitor 采样系统内存和CPU,标签页上限取以下三者的最小值:
//   - 可用内存 / 单个标签页内存
//   - CPU核数
//   - 配置的 max_tabs_limit
//
// 可用内存低于 safety_threshold 或CPU负载超过 cpu_load_threshold 时暂停创建新标签页。
package crawlers
