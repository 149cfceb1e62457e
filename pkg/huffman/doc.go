// Package huffman implements the static Huffman code used to compress the
// strings carried inside bit-packed network messages.
//
// The code is built once from a 256-entry frequency table. Encoding writes a
// symbol's path through the tree bit by bit; decoding walks the tree. Both
// sides of a connection must use the same table.
//
//	codec := huffman.Default()
//	codec.EncodeSymbol(w, 'a')
//	sym := codec.DecodeSymbol(r)
package huffman
