// Package database 定义了数据库相关的模型和连接初始化
// 包含分享记录和注册用户两类核心数据模型
package database

// 此文件保留作为数据库模型包的入口文件
// 具体的模型定义已拆分到以下文件：
// - share_models.go: 分享记录模型（ShareRecord）
// - user_models.go: 用户模型（User）
